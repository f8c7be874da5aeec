package policy

import (
	"context"
	"sync"

	"github.com/justapithecus/sparring/types"
)

// Sink abstracts row persistence for policies.
// Implementations may write to a local file, a Lode dataset, or stub for testing.
type Sink interface {
	// WriteRows persists a batch of rows.
	// Must preserve ordering within the batch.
	WriteRows(ctx context.Context, rows []*types.DataRow) error

	// Flush pushes written rows to stable storage.
	Flush(ctx context.Context) error

	// Close releases any resources held by the sink.
	Close() error
}

// StubSink is a test sink that accepts writes without persisting.
// Tracks write statistics for test assertions.
type StubSink struct {
	mu sync.Mutex

	// RowsWritten is the total count of rows written.
	RowsWritten int64
	// Batches is the number of WriteRows calls.
	Batches int64
	// Flushes is the number of Flush calls.
	Flushes int64
	// Closed indicates whether Close was called.
	Closed bool

	// Written stores all written rows for inspection, in write order.
	Written []*types.DataRow

	// ErrorOnWrite, if non-nil, is returned by WriteRows.
	ErrorOnWrite error
	// ErrorOnFlush, if non-nil, is returned by Flush.
	ErrorOnFlush error
}

// NewStubSink creates a new stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{}
}

// WriteRows records the rows without persisting.
func (s *StubSink) WriteRows(_ context.Context, rows []*types.DataRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}

	s.Batches++
	s.RowsWritten += int64(len(rows))
	s.Written = append(s.Written, rows...)
	return nil
}

// Flush records the flush.
func (s *StubSink) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnFlush != nil {
		return s.ErrorOnFlush
	}
	s.Flushes++
	return nil
}

// Close marks the sink as closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Closed = true
	return nil
}

// Rows returns a copy of the written rows.
func (s *StubSink) Rows() []*types.DataRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*types.DataRow(nil), s.Written...)
}

// Stats returns a snapshot of sink statistics.
func (s *StubSink) Stats() StubSinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StubSinkStats{
		RowsWritten: s.RowsWritten,
		Batches:     s.Batches,
		Flushes:     s.Flushes,
		Closed:      s.Closed,
	}
}

// StubSinkStats is a snapshot of StubSink statistics.
type StubSinkStats struct {
	RowsWritten int64
	Batches     int64
	Flushes     int64
	Closed      bool
}

var _ Sink = (*StubSink)(nil)
