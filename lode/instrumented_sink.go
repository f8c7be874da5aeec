package lode

import (
	"context"

	"github.com/justapithecus/sparring/metrics"
	"github.com/justapithecus/sparring/policy"
	"github.com/justapithecus/sparring/types"
)

// InstrumentedSink wraps a policy.Sink and counts storage writes. Each
// WriteRows call increments lode_write_success or lode_write_failure.
type InstrumentedSink struct {
	inner     policy.Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with metrics instrumentation.
func NewInstrumentedSink(inner policy.Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// WriteRows delegates to the inner sink and records success or failure.
func (s *InstrumentedSink) WriteRows(ctx context.Context, rows []*types.DataRow) error {
	err := s.inner.WriteRows(ctx, rows)
	if err != nil {
		s.collector.IncLodeWriteFailure()
	} else {
		s.collector.IncLodeWriteSuccess()
	}
	return err
}

// Flush delegates to the inner sink.
func (s *InstrumentedSink) Flush(ctx context.Context) error {
	return s.inner.Flush(ctx)
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

var _ policy.Sink = (*InstrumentedSink)(nil)
