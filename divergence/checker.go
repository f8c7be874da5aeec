package divergence

import (
	"context"
	"errors"
	"fmt"

	"github.com/justapithecus/sparring/game"
	"github.com/justapithecus/sparring/log"
	"github.com/justapithecus/sparring/types"
)

// Plan is one worker's validation schedule: RandomGames randomized games,
// then exactly one best-move game at BestDepth. Every game is capped at
// MaxPlies.
type Plan struct {
	RandomGames int
	MaxPlies    int
	BestDepth   int
}

// DefaultPlan returns the schedule used by the heuristic comparison.
func DefaultPlan() Plan {
	return Plan{RandomGames: 50, MaxPlies: 1000, BestDepth: 4}
}

// Validate checks the plan bounds.
func (p Plan) Validate() error {
	if p.RandomGames < 0 {
		return fmt.Errorf("random games must be non-negative, got %d", p.RandomGames)
	}
	if p.MaxPlies <= 0 {
		return fmt.Errorf("max plies must be positive, got %d", p.MaxPlies)
	}
	if p.BestDepth <= 0 {
		return fmt.Errorf("best depth must be positive, got %d", p.BestDepth)
	}
	return nil
}

// Checker compares a reference link A against a candidate link B.
// A chooses moves; both links are re-anchored with the full history after
// each ply, so the comparison always sees the same position.
type Checker struct {
	a, b   game.Link
	worker int
	logger *log.Logger

	width types.Width
	plies int
}

// NewChecker creates a checker for one worker's link pair.
func NewChecker(a, b game.Link, worker int, logger *log.Logger) *Checker {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Checker{a: a, b: b, worker: worker, logger: logger}
}

// PliesChecked returns the number of positions compared so far.
func (c *Checker) PliesChecked() int {
	return c.plies
}

// CheckPosition evaluates the current position on both links and compares
// the vectors. It returns a *Found error on divergence and wraps
// ErrLengthMismatch when the vectors are not comparable, including when
// both links change length against the width pinned at the first ply.
func (c *Checker) CheckPosition(ctx context.Context, kind types.GameKind, gameIdx, ply int, moves types.MoveHistory) error {
	evA, err := c.a.Evaluate(ctx)
	if err != nil {
		return err
	}
	evB, err := c.b.Evaluate(ctx)
	if err != nil {
		return err
	}
	c.plies++

	verdict, err := Compare(evA.Features, evB.Features)
	if err == nil {
		err = c.width.Check(evA.Features)
	}
	if err != nil {
		return fmt.Errorf("ply %d of %s game %d: %w", ply, kind, gameIdx, err)
	}
	if verdict == Equal {
		return nil
	}

	position, err := c.a.QueryPosition(ctx)
	if err != nil {
		return err
	}
	return &Found{Report: &types.DivergenceReport{
		Position: position,
		A:        evA.Features.Clone(),
		B:        evB.Features.Clone(),
		Ply:      ply,
		Game:     gameIdx,
		Kind:     kind,
		Worker:   c.worker,
		Moves:    moves,
	}}
}

// Hook returns a per-ply hook bound to one game.
func (c *Checker) Hook(kind types.GameKind, gameIdx int) game.PlyHook {
	return func(ctx context.Context, ply int, moves types.MoveHistory) error {
		return c.CheckPosition(ctx, kind, gameIdx, ply, moves)
	}
}

// Run executes the plan and returns the worker's result. The worker passes
// only if every game reaches a terminal state or the ply cap without a
// divergent verdict. The first divergence ends the plan early.
func (c *Checker) Run(ctx context.Context, plan Plan) types.WorkerResult {
	res := types.WorkerResult{Worker: c.worker}
	if err := plan.Validate(); err != nil {
		res.Err = err
		return res
	}

	finish := func(err error) types.WorkerResult {
		res.PliesChecked = c.plies
		if report, ok := AsFound(err); ok {
			res.Divergence = report
			c.logger.Warn("divergence found", map[string]any{
				"game":     report.Game,
				"kind":     string(report.Kind),
				"ply":      report.Ply,
				"position": report.Position,
			})
			return res
		}
		if err != nil {
			res.Err = err
			return res
		}
		res.Pass = true
		return res
	}

	for i := 0; i < plan.RandomGames; i++ {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		s := game.NewSession(c.a, []game.Link{c.b},
			game.WithHook(c.Hook(types.GameRandom, i)),
			game.WithLogger(c.logger))
		res.GamesPlayed++
		if _, err := s.PlayRandomGame(ctx, plan.MaxPlies); err != nil {
			return finish(err)
		}
	}

	if err := ctx.Err(); err != nil {
		return finish(err)
	}
	s := game.NewSession(c.a, []game.Link{c.b},
		game.WithHook(c.Hook(types.GameBest, plan.RandomGames)),
		game.WithLogger(c.logger))
	res.GamesPlayed++
	rec, err := s.PlayBestGame(ctx, plan.BestDepth, plan.MaxPlies)
	if err == nil && rec.Capped {
		c.logger.Info("best-move game reached ply cap", map[string]any{"max_plies": plan.MaxPlies})
	}
	return finish(err)
}

// IsRunFatal reports whether err must stop every worker, not just the
// one that saw it.
func IsRunFatal(err error) bool {
	return errors.Is(err, ErrLengthMismatch)
}
