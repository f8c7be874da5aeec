package lode

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/sparring/types"
)

// ErrNoRowsFound is returned when a dataset holds no row records.
var ErrNoRowsFound = errors.New("no row records found")

// Summary describes a dataset.
type Summary struct {
	// Rows is the number of rows.
	Rows int64 `json:"rows" yaml:"rows"`
	// Columns is the coefficient count of the first row, excluding the label.
	Columns int `json:"columns" yaml:"columns"`
	// Ragged counts rows whose coefficient count differs from Columns.
	Ragged int64 `json:"ragged" yaml:"ragged"`
	Wins   int64 `json:"wins" yaml:"wins"`
	Draws  int64 `json:"draws" yaml:"draws"`
	Losses int64 `json:"losses" yaml:"losses"`
	// Runs lists the run IDs seen, sorted. Empty for CSV files.
	Runs []string `json:"runs,omitempty" yaml:"runs,omitempty"`
}

// add folds one row into the summary.
func (s *Summary) add(columns int, label types.Label) {
	if s.Rows == 0 {
		s.Columns = columns
	} else if columns != s.Columns {
		s.Ragged++
	}
	s.Rows++
	switch label {
	case types.LabelWin:
		s.Wins++
	case types.LabelDraw:
		s.Draws++
	default:
		s.Losses++
	}
}

// SummarizeCSVFile summarizes a CSV dataset file.
func SummarizeCSVFile(path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, WrapReadError(err, path)
	}
	defer func() { _ = f.Close() }()
	return SummarizeCSV(f)
}

// SummarizeCSV summarizes CSV rows read from r. The last field of every
// line is the label.
func SummarizeCSV(r io.Reader) (*Summary, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	s := &Summary{}
	for line := 1; ; line++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: want coefficients and a label, got %d fields", line, len(fields))
		}
		label, err := strconv.ParseFloat(fields[len(fields)-1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad label: %w", line, err)
		}
		s.add(len(fields)-1, types.Label(label))
	}
	return s, nil
}

// rowKey identifies a row across snapshots that may repeat earlier records.
type rowKey struct {
	run               string
	worker, game, ply int
}

func firstSight(seen map[rowKey]struct{}, rec RowRecord) bool {
	k := rowKey{run: rec.RunID, worker: rec.Worker, game: rec.Game, ply: rec.Ply}
	if _, dup := seen[k]; dup {
		return false
	}
	seen[k] = struct{}{}
	return true
}

// SummarizeDataset summarizes every row record in ds, optionally restricted
// to one run. Returns ErrNoRowsFound if nothing matches.
func SummarizeDataset(ctx context.Context, ds lode.Dataset, runID string) (*Summary, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	s := &Summary{}
	runs := map[string]struct{}{}
	seen := map[rowKey]struct{}{}
	for _, snap := range snapshots {
		if !snapshotMatchesFilter(snap, "run_id", runID) {
			continue
		}
		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}
		for _, item := range data {
			rec, ok, err := decodeRowRecord(item)
			if err != nil {
				return nil, err
			}
			// Manifest filtering is coarse; the record field is authoritative.
			if !ok || (runID != "" && rec.RunID != runID) || !firstSight(seen, rec) {
				continue
			}
			s.add(len(rec.Features), types.Label(rec.Label))
			runs[rec.RunID] = struct{}{}
		}
	}
	if s.Rows == 0 {
		return nil, ErrNoRowsFound
	}
	for id := range runs {
		s.Runs = append(s.Runs, id)
	}
	sort.Strings(s.Runs)
	return s, nil
}

// ReadRows returns every row record of one run, in snapshot order.
func ReadRows(ctx context.Context, ds lode.Dataset, runID string) ([]*types.DataRow, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}
	var rows []*types.DataRow
	seen := map[rowKey]struct{}{}
	for _, snap := range snapshots {
		if !snapshotMatchesFilter(snap, "run_id", runID) {
			continue
		}
		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}
		for _, item := range data {
			rec, ok, err := decodeRowRecord(item)
			if err != nil {
				return nil, err
			}
			if ok && (runID == "" || rec.RunID == runID) && firstSight(seen, rec) {
				rows = append(rows, rec.Row())
			}
		}
	}
	return rows, nil
}
