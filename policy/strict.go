package policy

import (
	"context"

	"github.com/justapithecus/sparring/types"
)

// StrictPolicy implements synchronous, unbuffered persistence.
//
//   - No buffering: each row is written and flushed before the next is taken
//   - No drops: all rows are persisted
//   - Backpressure: the drainer blocks on sink latency
//   - Sink errors fail the run
type StrictPolicy struct {
	sink  Sink
	stats statsRecorder
}

// NewStrictPolicy creates a new strict policy writing to the given sink.
func NewStrictPolicy(sink Sink) *StrictPolicy {
	return &StrictPolicy{sink: sink}
}

// IngestRow writes the row immediately and flushes the sink, so a crash
// loses at most the row in flight.
func (p *StrictPolicy) IngestRow(ctx context.Context, row *types.DataRow) error {
	p.stats.incTotalRows()

	// Write immediately (batch of 1)
	if err := p.sink.WriteRows(ctx, []*types.DataRow{row}); err != nil {
		p.stats.incErrors()
		return err
	}
	if err := p.sink.Flush(ctx); err != nil {
		p.stats.incErrors()
		return err
	}

	p.stats.incRowsPersisted(1)
	return nil
}

// Flush flushes the sink. Every row is already flushed on ingest.
func (p *StrictPolicy) Flush(ctx context.Context) error {
	p.stats.incFlush()
	return p.sink.Flush(ctx)
}

// Close closes the underlying sink.
func (p *StrictPolicy) Close() error {
	return p.sink.Close()
}

// Stats returns policy statistics.
func (p *StrictPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*StrictPolicy)(nil)
