package lode

import (
	"encoding/json"
	"fmt"

	"github.com/justapithecus/sparring/types"
)

// RecordKindRow marks a dataset row record.
const RecordKindRow = "row"

// RowRecord is the storage format of one labeled dataset row. Partition
// keys are carried on the record for the Hive layout.
type RowRecord struct {
	RecordKind string  `json:"record_kind"`
	Features   []int   `json:"features"`
	Label      float64 `json:"label"`
	Worker     int     `json:"worker"`
	Game       int     `json:"game"`
	Ply        int     `json:"ply"`

	Engine string `json:"engine"`
	Day    string `json:"day"`
	RunID  string `json:"run_id"`
}

// toRowRecordMap converts a row to the map form the JSONL codec and the
// Hive layout expect.
func toRowRecordMap(row *types.DataRow, cfg Config) map[string]any {
	features := make([]any, len(row.Features))
	for i, c := range row.Features {
		features[i] = c
	}
	return map[string]any{
		"record_kind": RecordKindRow,
		"features":    features,
		"label":       float64(row.Label),
		"worker":      row.Worker,
		"game":        row.Game,
		"ply":         row.Ply,
		"engine":      cfg.Engine,
		"day":         cfg.Day,
		"run_id":      cfg.RunID,
	}
}

// decodeRowRecord converts a record read back from a dataset. Records of
// other kinds return ok false.
func decodeRowRecord(item any) (rec RowRecord, ok bool, err error) {
	m, isMap := item.(map[string]any)
	if !isMap {
		return rec, false, nil
	}
	if kind, _ := m["record_kind"].(string); kind != RecordKindRow {
		return rec, false, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return rec, false, fmt.Errorf("re-encode record: %w", err)
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, false, fmt.Errorf("decode row record: %w", err)
	}
	return rec, true, nil
}

// Row converts the record back to a DataRow.
func (r RowRecord) Row() *types.DataRow {
	return &types.DataRow{
		Features: types.FeatureVector(append([]int(nil), r.Features...)),
		Label:    types.Label(r.Label),
		Worker:   r.Worker,
		Game:     r.Game,
		Ply:      r.Ply,
	}
}
