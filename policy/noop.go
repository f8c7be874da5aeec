package policy

import (
	"context"

	"github.com/justapithecus/sparring/types"
)

// NoopPolicy accepts all rows but does not persist them.
// Used for dry runs; every row is counted as discarded.
type NoopPolicy struct {
	stats statsRecorder
}

// NewNoopPolicy creates a new no-op policy.
func NewNoopPolicy() *NoopPolicy {
	return &NoopPolicy{}
}

// IngestRow accepts the row but does not persist it.
func (p *NoopPolicy) IngestRow(_ context.Context, _ *types.DataRow) error {
	p.stats.incTotalRows()
	p.stats.incRowsDiscarded()
	return nil
}

// Flush is a no-op.
func (p *NoopPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close is a no-op.
func (p *NoopPolicy) Close() error {
	return nil
}

// Stats returns the policy statistics.
func (p *NoopPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*NoopPolicy)(nil)
