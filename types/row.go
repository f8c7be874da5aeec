package types

import (
	"strconv"
	"strings"
)

// Label is the game outcome appended to every persisted row, from the
// perspective used by the training step: 1, 0.5 or 0.
type Label float64

// Outcome labels.
const (
	LabelLoss Label = 0
	LabelDraw Label = 0.5
	LabelWin  Label = 1
)

// String formats the label the way it appears in the dataset.
func (l Label) String() string {
	return strconv.FormatFloat(float64(l), 'f', -1, 64)
}

// DataRow is one labeled training row: the coefficient vector of a
// quiescent position followed by the final game outcome.
type DataRow struct {
	// Features is the evaluation vector of the position.
	Features FeatureVector
	// Label is the final outcome of the game the position came from.
	Label Label
	// Worker is the id of the producing worker.
	Worker int
	// Game is the producing worker's game counter.
	Game int
	// Ply is the ply index of the position within its game.
	Ply int
}

// Fields returns the row as dataset columns: coefficients, then label.
func (r *DataRow) Fields() []string {
	out := make([]string, 0, len(r.Features)+1)
	for _, c := range r.Features {
		out = append(out, strconv.Itoa(c))
	}
	return append(out, r.Label.String())
}

// Line returns the row as one comma-separated dataset line, without newline.
func (r *DataRow) Line() string {
	return strings.Join(r.Fields(), ",")
}

// RecordKind discriminates ChannelRecord.
type RecordKind int

const (
	// RecordData carries a DataRow.
	RecordData RecordKind = iota
	// RecordSentinel tells the consumer to stop draining.
	RecordSentinel
)

// ChannelRecord is the unit moved from producers to the result sink.
// Ownership transfers to the channel on push and to the sink on pop.
type ChannelRecord struct {
	Kind RecordKind
	Row  *DataRow
}

// DataRecord wraps a row for the channel.
func DataRecord(row *DataRow) ChannelRecord {
	return ChannelRecord{Kind: RecordData, Row: row}
}

// SentinelRecord returns the stop marker.
func SentinelRecord() ChannelRecord {
	return ChannelRecord{Kind: RecordSentinel}
}

// IsSentinel reports whether the record is the stop marker.
func (r ChannelRecord) IsSentinel() bool {
	return r.Kind == RecordSentinel
}
