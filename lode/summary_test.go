package lode

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/sparring/types"
)

func TestSummarizeCSV(t *testing.T) {
	in := strings.Join([]string{
		"1,2,3,1",
		"4,5,6,0.5",
		"7,8,9,0",
		"1,2,0",
	}, "\n")

	s, err := SummarizeCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("SummarizeCSV failed: %v", err)
	}
	if s.Rows != 4 || s.Columns != 3 || s.Ragged != 1 {
		t.Errorf("summary = %+v, want 4 rows, 3 columns, 1 ragged", s)
	}
	if s.Wins != 1 || s.Draws != 1 || s.Losses != 2 {
		t.Errorf("labels = %d/%d/%d, want 1/1/2", s.Wins, s.Draws, s.Losses)
	}
}

func TestSummarizeCSV_BadLabel(t *testing.T) {
	if _, err := SummarizeCSV(strings.NewReader("1,2,x\n")); err == nil {
		t.Error("bad label = nil error")
	}
	if _, err := SummarizeCSV(strings.NewReader("1\n")); err == nil {
		t.Error("single field = nil error")
	}
}

func TestSummarizeCSVFile_WrittenBySink(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultCSVPath)
	sink, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("NewCSVSink failed: %v", err)
	}
	if err := sink.WriteRows(t.Context(), testRows(5, types.LabelDraw)); err != nil {
		t.Fatalf("WriteRows failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s, err := SummarizeCSVFile(path)
	if err != nil {
		t.Fatalf("SummarizeCSVFile failed: %v", err)
	}
	if s.Rows != 5 || s.Draws != 5 || s.Columns != 3 {
		t.Errorf("summary = %+v", s)
	}
}

func TestSummarizeDataset_FiltersByRun(t *testing.T) {
	store := lode.NewMemory()
	factory := sharedFactory(store)

	for i, runID := range []string{"run-1", "run-2", "run-10"} {
		client, err := NewLodeClientWithFactory(testConfig(runID), factory)
		if err != nil {
			t.Fatalf("NewLodeClientWithFactory failed: %v", err)
		}
		if err := client.WriteRows(t.Context(), testRows(i+1, types.LabelWin)); err != nil {
			t.Fatalf("WriteRows for %s failed: %v", runID, err)
		}
	}

	ds, err := NewDataset(DefaultDataset, factory)
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}

	all, err := SummarizeDataset(t.Context(), ds, "")
	if err != nil {
		t.Fatalf("SummarizeDataset failed: %v", err)
	}
	if all.Rows != 6 {
		t.Errorf("all rows = %d, want 6", all.Rows)
	}
	if strings.Join(all.Runs, ",") != "run-1,run-10,run-2" {
		t.Errorf("Runs = %v", all.Runs)
	}

	one, err := SummarizeDataset(t.Context(), ds, "run-1")
	if err != nil {
		t.Fatalf("SummarizeDataset(run-1) failed: %v", err)
	}
	if one.Rows != 1 || one.Wins != 1 {
		t.Errorf("run-1 summary = %+v, want 1 win", one)
	}
}

func TestSummarizeDataset_Empty(t *testing.T) {
	ds, err := NewDataset(DefaultDataset, lode.NewMemoryFactory())
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}
	if _, err := SummarizeDataset(t.Context(), ds, ""); !errors.Is(err, ErrNoRowsFound) {
		t.Errorf("error = %v, want ErrNoRowsFound", err)
	}
}
