// Package policy defines how dataset rows reach a persistence sink.
package policy

import (
	"context"
	"sync"

	"github.com/justapithecus/sparring/types"
)

// Policy controls persistence of dataset rows.
//
//   - Rows must be persisted in the order they are ingested
//   - A row must not be dropped silently
//   - Policy failure terminates the run
type Policy interface {
	// IngestRow handles one labeled row.
	// Returns error on failure (terminates run).
	IngestRow(ctx context.Context, row *types.DataRow) error

	// Flush flushes any buffered data.
	// Called once when the drainer observes the sentinel.
	Flush(ctx context.Context) error

	// Close cleans up policy resources.
	Close() error

	// Stats returns an atomic snapshot of policy metrics.
	Stats() Stats
}

// Stats represents policy observability metrics.
type Stats struct {
	// TotalRows is the total number of rows received.
	TotalRows int64
	// RowsPersisted is the number of rows handed to the sink successfully.
	RowsPersisted int64
	// RowsDiscarded is the number of rows accepted without persistence
	// (dry runs only).
	RowsDiscarded int64
	// FlushCount is the number of flush operations.
	FlushCount int64
	// Errors is the count of sink errors encountered.
	Errors int64
}

// statsRecorder is an internal helper for thread-safe stats management.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func (r *statsRecorder) incTotalRows() {
	r.mu.Lock()
	r.stats.TotalRows++
	r.mu.Unlock()
}

func (r *statsRecorder) incRowsPersisted(n int64) {
	r.mu.Lock()
	r.stats.RowsPersisted += n
	r.mu.Unlock()
}

func (r *statsRecorder) incRowsDiscarded() {
	r.mu.Lock()
	r.stats.RowsDiscarded++
	r.mu.Unlock()
}

func (r *statsRecorder) incErrors() {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
}

func (r *statsRecorder) incFlush() {
	r.mu.Lock()
	r.stats.FlushCount++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
