package diag

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/justapithecus/sparring/metrics"
	"github.com/justapithecus/sparring/types"
)

// Entry is one archived divergence: the report and the command logs of both
// links at the moment it was found.
type Entry struct {
	Type      string                  `msgpack:"type" json:"type" yaml:"type"`
	RunID     string                  `msgpack:"run_id" json:"run_id" yaml:"run_id"`
	Ts        string                  `msgpack:"ts" json:"ts" yaml:"ts"`
	Report    *types.DivergenceReport `msgpack:"report" json:"report" yaml:"report"`
	CommandsA []string                `msgpack:"commands_a" json:"commands_a" yaml:"commands_a"`
	CommandsB []string                `msgpack:"commands_b" json:"commands_b" yaml:"commands_b"`
}

// NewEntry stamps a divergence report for the archive.
func NewEntry(runID string, report *types.DivergenceReport, commandsA, commandsB []string, now time.Time) *Entry {
	return &Entry{
		Type:      DivergenceType,
		RunID:     runID,
		Ts:        now.UTC().Format(time.RFC3339Nano),
		Report:    report,
		CommandsA: commandsA,
		CommandsB: commandsB,
	}
}

// Writer appends entries to an archive. It is safe for concurrent use by
// every worker of a run.
type Writer struct {
	mu        sync.Mutex
	w         io.Writer
	closer    io.Closer
	collector *metrics.Collector
	frames    int
}

// Create opens path for appending, creating it if needed. collector may be nil.
func Create(path string, collector *metrics.Collector) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open diagnostic archive: %w", err)
	}
	return &Writer{w: f, closer: f, collector: collector}, nil
}

// NewWriter appends frames to w. The caller owns w.
func NewWriter(w io.Writer, collector *metrics.Collector) *Writer {
	return &Writer{w: w, collector: collector}
}

// Append writes one entry as a single frame.
func (w *Writer) Append(e *Entry) error {
	frame, err := EncodeFrame(e)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(frame); err != nil {
		return fmt.Errorf("append diagnostic frame: %w", err)
	}
	w.frames++
	w.collector.IncDiagFramesWritten()
	return nil
}

// Frames returns the number of frames appended by this writer.
func (w *Writer) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Close closes the underlying file, if the writer opened one.
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// ReadResult is the decoded content of an archive.
type ReadResult struct {
	Entries []*Entry
	// Skipped counts frames that were well-formed but not decodable entries.
	Skipped int
}

// ReadEntries decodes every frame of r. Undecodable frames are skipped and
// counted; a fatal framing error stops the read and is returned together
// with the entries decoded so far.
func ReadEntries(r io.Reader, collector *metrics.Collector) (ReadResult, error) {
	var res ReadResult
	dec := NewFrameDecoder(r)
	for {
		payload, err := dec.ReadFrame()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		entry, err := DecodeEntry(payload)
		if err != nil {
			if IsFatalFrameError(err) {
				return res, err
			}
			res.Skipped++
			collector.IncDiagDecodeErrors()
			continue
		}
		res.Entries = append(res.Entries, entry)
	}
}

// ReadFile decodes the archive at path.
func ReadFile(path string, collector *metrics.Collector) (ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ReadResult{}, fmt.Errorf("open diagnostic archive: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadEntries(f, collector)
}
