package sink

import (
	"context"
	"fmt"

	"github.com/justapithecus/sparring/log"
	"github.com/justapithecus/sparring/metrics"
	"github.com/justapithecus/sparring/policy"
)

// DrainStats summarizes one drain.
type DrainStats struct {
	// Received is the number of data records popped.
	Received int64
	// Persisted is the number of rows the policy accepted.
	Persisted int64
	// Discarded is the number of rows popped after a policy failure.
	Discarded int64
}

// Sink is the single consumer of a Channel.
type Sink struct {
	ch        *Channel
	policy    policy.Policy
	logger    *log.Logger
	collector *metrics.Collector
}

// New creates a sink draining ch into pol. collector may be nil.
func New(ch *Channel, pol policy.Policy, logger *log.Logger, collector *metrics.Collector) *Sink {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Sink{ch: ch, policy: pol, logger: logger, collector: collector}
}

// Channel returns the channel this sink drains.
func (s *Sink) Channel() *Channel {
	return s.ch
}

// Drain pops records until the sentinel and hands each row to the policy,
// then flushes and closes the policy.
//
// After a policy failure the sink keeps popping until the sentinel so that
// producers never block on a dead consumer; those rows are counted as
// discarded and the first failure is returned.
func (s *Sink) Drain(ctx context.Context) (DrainStats, error) {
	var stats DrainStats
	var firstErr error

	for {
		rec, err := s.ch.Pop(ctx)
		if err != nil {
			return stats, closeWith(s.policy, firstOf(firstErr, err))
		}
		if rec.IsSentinel() {
			break
		}

		stats.Received++
		if firstErr != nil {
			stats.Discarded++
			continue
		}
		if err := s.policy.IngestRow(ctx, rec.Row); err != nil {
			firstErr = fmt.Errorf("persist row (worker %d game %d ply %d): %w",
				rec.Row.Worker, rec.Row.Game, rec.Row.Ply, err)
			s.collector.IncRowsPersistFailure()
			s.logger.Error("row persistence failed", map[string]any{"error": err.Error()})
			stats.Discarded++
			continue
		}
		stats.Persisted++
		s.collector.IncRowsPersisted()
	}

	if firstErr == nil {
		firstErr = s.policy.Flush(ctx)
	}
	s.logger.Info("sink drained", map[string]any{
		"received":  stats.Received,
		"persisted": stats.Persisted,
		"discarded": stats.Discarded,
	})
	return stats, closeWith(s.policy, firstErr)
}

func firstOf(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// closeWith closes the policy and returns err, or the close error when err
// is nil.
func closeWith(pol policy.Policy, err error) error {
	if cerr := pol.Close(); err == nil {
		return cerr
	}
	return err
}
