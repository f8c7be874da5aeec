package pool

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/justapithecus/sparring/divergence"
	"github.com/justapithecus/sparring/engine"
	"github.com/justapithecus/sparring/types"
)

// DivergenceHandler receives each divergence together with the command logs
// of both links, before the links are torn down.
type DivergenceHandler func(report *types.DivergenceReport, commandsA, commandsB []string)

// CheckConfig configures a differential run.
type CheckConfig struct {
	Config
	// Plan is executed by every worker independently.
	Plan divergence.Plan
	// OnDivergence may be nil. It is called from worker goroutines.
	OnDivergence DivergenceHandler
}

// RunCheck runs Plan on Workers independent link pairs and reduces the
// results. A protocol failure stops only the worker that saw it. A run-fatal
// error, such as a feature length mismatch, cancels every worker and is
// returned alongside the partial aggregate.
func RunCheck(ctx context.Context, cfg CheckConfig) (types.AggregateResult, error) {
	if err := cfg.validate(); err != nil {
		return types.AggregateResult{}, err
	}
	if err := cfg.Plan.Validate(); err != nil {
		return types.AggregateResult{}, err
	}
	logger := cfg.logger()

	results := make([]types.WorkerResult, cfg.Workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := range cfg.Workers {
		g.Go(func() error {
			res := cfg.checkWorker(gctx, w)
			results[w] = res
			if divergence.IsRunFatal(res.Err) {
				return res.Err
			}
			return nil
		})
	}
	runErr := g.Wait()

	agg := types.Reduce(results)
	logger.Info("check run finished", map[string]any{
		"workers":     cfg.Workers,
		"pass":        agg.Pass,
		"divergences": len(agg.Divergences()),
		"failures":    len(agg.Failures()),
	})
	return agg, runErr
}

func (cfg *CheckConfig) checkWorker(ctx context.Context, worker int) types.WorkerResult {
	logger := cfg.logger().With(map[string]any{"worker": worker})

	p, err := cfg.open(ctx, worker)
	if err != nil {
		logger.Error("worker failed to open links", map[string]any{"error": err.Error()})
		return types.WorkerResult{Worker: worker, Err: err}
	}
	defer func() {
		if err := p.close(); err != nil {
			logger.Debug("link teardown", map[string]any{"error": err.Error()})
		}
	}()

	checker := divergence.NewChecker(p.a, p.b, worker, logger)
	res := checker.Run(ctx, cfg.Plan)

	cfg.Metrics.AddGamesPlayed(res.GamesPlayed)
	cfg.Metrics.AddPliesChecked(res.PliesChecked)
	switch {
	case res.Divergence != nil:
		cfg.Metrics.IncDivergences()
		if cfg.OnDivergence != nil {
			cfg.OnDivergence(res.Divergence, p.a.Commands(), p.b.Commands())
		}
	case engine.IsWorkerFatal(res.Err) && ctx.Err() == nil:
		cfg.Metrics.IncLinkFailure()
		logger.Error("worker stopped on link failure", map[string]any{"error": res.Err.Error()})
	}
	return res
}
