package pool

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/justapithecus/sparring/engine"
	"github.com/justapithecus/sparring/game"
	"github.com/justapithecus/sparring/sink"
)

// DatagenConfig configures a self-play data generation run.
type DatagenConfig struct {
	Config
	// Games is the number of games per worker. Zero plays until ctx is done.
	Games int
	// SelfPlay shapes every game.
	SelfPlay game.SelfPlayConfig
}

// ProducerStats summarizes one worker of a datagen run.
type ProducerStats struct {
	Worker       int
	Games        int
	Capped       int
	RowsKept     int
	RowsFiltered int
	// Err is the error that stopped the worker, if any. Cancellation of the
	// run context is not recorded.
	Err error
}

// DatagenResult is the outcome of a datagen run.
type DatagenResult struct {
	Producers []ProducerStats
	Drain     sink.DrainStats
}

// Failures returns the producers that stopped on an error.
func (r *DatagenResult) Failures() []ProducerStats {
	var out []ProducerStats
	for _, p := range r.Producers {
		if p.Err != nil {
			out = append(out, p)
		}
	}
	return out
}

// RunDatagen runs self-play producers that push labeled rows into the sink's
// channel while the sink drains it on its own goroutine. Once every producer
// has returned, the channel is sealed exactly once and the drain is awaited.
//
// The drain runs detached from ctx cancellation so rows already pushed are
// persisted after an interrupt. The returned error is the persistence
// failure, if any; producer failures are reported per worker.
func RunDatagen(ctx context.Context, cfg DatagenConfig, s *sink.Sink) (DatagenResult, error) {
	if err := cfg.validate(); err != nil {
		return DatagenResult{}, err
	}
	if cfg.Games < 0 {
		return DatagenResult{}, fmt.Errorf("games must not be negative, got %d", cfg.Games)
	}
	if cfg.SelfPlay.MaxPlies <= 0 {
		return DatagenResult{}, fmt.Errorf("max plies must be positive, got %d", cfg.SelfPlay.MaxPlies)
	}
	logger := cfg.logger()
	drainCtx := context.WithoutCancel(ctx)

	type drainResult struct {
		stats sink.DrainStats
		err   error
	}
	drained := make(chan drainResult, 1)
	go func() {
		stats, err := s.Drain(drainCtx)
		drained <- drainResult{stats: stats, err: err}
	}()

	producers := make([]ProducerStats, cfg.Workers)
	var g errgroup.Group
	for w := range cfg.Workers {
		g.Go(func() error {
			producers[w] = cfg.produce(ctx, w, s.Channel())
			return nil
		})
	}
	_ = g.Wait()

	if err := s.Channel().Seal(drainCtx); err != nil {
		logger.Error("seal failed", map[string]any{"error": err.Error()})
	}
	d := <-drained

	result := DatagenResult{Producers: producers, Drain: d.stats}
	logger.Info("datagen run finished", map[string]any{
		"workers":   cfg.Workers,
		"received":  d.stats.Received,
		"persisted": d.stats.Persisted,
		"discarded": d.stats.Discarded,
		"failures":  len(result.Failures()),
	})
	return result, d.err
}

func (cfg *DatagenConfig) produce(ctx context.Context, worker int, ch *sink.Channel) ProducerStats {
	stats := ProducerStats{Worker: worker}
	logger := cfg.logger().With(map[string]any{"worker": worker})

	p, err := cfg.open(ctx, worker)
	if err != nil {
		if ctx.Err() == nil {
			stats.Err = err
			logger.Error("worker failed to open links", map[string]any{"error": err.Error()})
		}
		return stats
	}
	defer func() {
		if err := p.close(); err != nil {
			logger.Debug("link teardown", map[string]any{"error": err.Error()})
		}
	}()

	sp := game.NewSelfPlay(p.a, p.b, cfg.SelfPlay, worker, logger)
	for i := 0; cfg.Games == 0 || i < cfg.Games; i++ {
		if ctx.Err() != nil {
			return stats
		}
		res, err := sp.Play(ctx, i)
		if err != nil {
			if ctx.Err() == nil || !isCancellation(err) {
				stats.Err = err
				if engine.IsWorkerFatal(err) {
					cfg.Metrics.IncLinkFailure()
				}
				logger.Error("self-play game failed", map[string]any{"game": i, "error": err.Error()})
			}
			return stats
		}

		stats.Games++
		cfg.Metrics.AddGamesPlayed(1)
		if res.Record.Capped {
			stats.Capped++
			cfg.Metrics.IncGamesCapped()
		}
		stats.RowsFiltered += res.Filtered
		cfg.Metrics.AddRowsFiltered(res.Filtered)

		for _, row := range res.Rows {
			if err := ch.Push(ctx, row); err != nil {
				if ctx.Err() == nil {
					stats.Err = err
				}
				return stats
			}
			stats.RowsKept++
			cfg.Metrics.AddRowsKept(1)
		}
	}
	return stats
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, engine.ErrCanceled)
}
