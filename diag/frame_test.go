package diag

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

// rawFrame prefixes payload with its length.
func rawFrame(payload []byte) []byte {
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf
}

func TestFrameDecoder_EmptyStream(t *testing.T) {
	_, err := NewFrameDecoder(bytes.NewReader(nil)).ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameDecoder_TruncatedLengthPrefix(t *testing.T) {
	_, err := NewFrameDecoder(bytes.NewReader([]byte{0, 0})).ReadFrame()
	var fe *FrameError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, FrameErrorPartial, fe.Kind)
	assert.True(t, IsFatalFrameError(err))
}

func TestFrameDecoder_PartialPayload(t *testing.T) {
	frame := rawFrame([]byte("hello"))
	_, err := NewFrameDecoder(bytes.NewReader(frame[:len(frame)-2])).ReadFrame()
	assert.True(t, IsFatalFrameError(err))
}

func TestFrameDecoder_OversizedFrame(t *testing.T) {
	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], MaxPayloadSize+1)
	_, err := NewFrameDecoder(bytes.NewReader(prefix[:])).ReadFrame()
	var fe *FrameError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, FrameErrorTooLarge, fe.Kind)
}

func TestEncodeFrame_RoundTrip(t *testing.T) {
	frame, err := EncodeFrame(map[string]any{"type": "x", "n": 3})
	require.NoError(t, err)

	payload, err := NewFrameDecoder(bytes.NewReader(frame)).ReadFrame()
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, msgpack.Unmarshal(payload, &got))
	assert.Equal(t, "x", got["type"])
}

func TestDecodeEntry_Errors(t *testing.T) {
	_, err := DecodeEntry([]byte{0xc1})
	assert.Error(t, err)
	assert.False(t, IsFatalFrameError(err))

	payload, err := msgpack.Marshal(map[string]any{"type": "run_summary"})
	require.NoError(t, err)
	_, err = DecodeEntry(payload)
	assert.ErrorContains(t, err, "unknown frame type")

	payload, err = msgpack.Marshal(map[string]any{"type": DivergenceType})
	require.NoError(t, err)
	_, err = DecodeEntry(payload)
	assert.ErrorContains(t, err, "no report")
}

func TestFrameError_Message(t *testing.T) {
	cause := errors.New("boom")
	err := &FrameError{Kind: FrameErrorDecode, Msg: "failed", Err: cause}
	assert.Equal(t, "failed: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.False(t, err.IsFatal())
	assert.False(t, IsFatalFrameError(cause))
}
