package lode

import (
	"errors"
	"testing"

	"github.com/justapithecus/sparring/metrics"
	"github.com/justapithecus/sparring/policy"
	"github.com/justapithecus/sparring/types"
)

func TestSink_DelegatesToClient(t *testing.T) {
	client := NewStubClient()
	sink := NewSink(client)

	if err := sink.WriteRows(t.Context(), testRows(2, types.LabelWin)); err != nil {
		t.Fatalf("WriteRows failed: %v", err)
	}
	if err := sink.Flush(t.Context()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if len(client.Batches) != 1 || len(client.Batches[0]) != 2 {
		t.Fatalf("batches = %v, want one batch of 2", client.Batches)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !client.Closed {
		t.Error("client should be closed after Close()")
	}
}

func TestSink_StrictPolicyCommitsPerRow(t *testing.T) {
	client := NewStubClient()
	pol := policy.NewStrictPolicy(NewSink(client))

	for _, row := range testRows(3, types.LabelLoss) {
		if err := pol.IngestRow(t.Context(), row); err != nil {
			t.Fatalf("IngestRow failed: %v", err)
		}
	}
	if len(client.Batches) != 3 {
		t.Errorf("batches = %d, want one per row", len(client.Batches))
	}
}

func TestInstrumentedSink_CountsWrites(t *testing.T) {
	client := NewStubClient()
	collector := metrics.NewCollector("datagen", "memory", "run-1")
	sink := NewInstrumentedSink(NewSink(client), collector)

	if err := sink.WriteRows(t.Context(), testRows(1, types.LabelWin)); err != nil {
		t.Fatalf("WriteRows failed: %v", err)
	}
	client.Err = errors.New("bucket gone")
	if err := sink.WriteRows(t.Context(), testRows(1, types.LabelWin)); err == nil {
		t.Fatal("WriteRows = nil, want error")
	}

	snap := collector.Snapshot()
	if snap.LodeWriteSuccess != 1 || snap.LodeWriteFailure != 1 {
		t.Errorf("success/failure = %d/%d, want 1/1", snap.LodeWriteSuccess, snap.LodeWriteFailure)
	}
	if err := sink.Flush(t.Context()); err != nil {
		t.Errorf("Flush = %v", err)
	}
	if err := sink.Close(); err != nil || !client.Closed {
		t.Errorf("Close = %v, closed = %v", err, client.Closed)
	}
}
