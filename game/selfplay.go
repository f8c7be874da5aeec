package game

import (
	"context"
	"fmt"

	"github.com/justapithecus/sparring/engine"
	"github.com/justapithecus/sparring/log"
	"github.com/justapithecus/sparring/types"
)

// Self-play defaults.
const (
	DefaultTimeMs     = 3000
	DefaultInc        = 0.3
	DefaultScoreLimit = 3000
	DefaultMaxPlies   = 1000
)

// SelfPlayConfig controls one data-generation game.
type SelfPlayConfig struct {
	// Limits bounds every search.
	Limits engine.SearchLimits
	// ScoreLimit excludes positions whose |score| is not below it.
	ScoreLimit int
	// MaxPlies caps the game; a capped game yields no rows.
	MaxPlies int
}

// DefaultSelfPlayConfig returns the clocked search and filter used for
// training data.
func DefaultSelfPlayConfig() SelfPlayConfig {
	return SelfPlayConfig{
		Limits:     engine.ClockLimit(DefaultTimeMs, DefaultInc),
		ScoreLimit: DefaultScoreLimit,
		MaxPlies:   DefaultMaxPlies,
	}
}

// SelfPlayResult is the outcome of one self-play game.
type SelfPlayResult struct {
	Record *types.GameRecord
	// Rows are the labeled quiescent positions, in ply order.
	Rows []*types.DataRow
	// Filtered counts positions rejected by the quiescence filter.
	Filtered int
}

// SelfPlay alternates two links by ply parity. The mover searches on a
// clock, evaluates, applies its best move on its own position, and polls
// status.
type SelfPlay struct {
	links  [2]Link
	cfg    SelfPlayConfig
	worker int
	logger *log.Logger

	// width is pinned by the worker's first evaluation and held across games.
	width types.Width
}

// NewSelfPlay creates a self-play driver for one worker.
func NewSelfPlay(a, b Link, cfg SelfPlayConfig, worker int, logger *log.Logger) *SelfPlay {
	if logger == nil {
		logger = log.NewNop()
	}
	return &SelfPlay{links: [2]Link{a, b}, cfg: cfg, worker: worker, logger: logger}
}

// Play runs one game. game is the worker's game counter, stamped on rows.
func (sp *SelfPlay) Play(ctx context.Context, game int) (*SelfPlayResult, error) {
	if sp.cfg.MaxPlies <= 0 {
		return nil, fmt.Errorf("max plies must be positive, got %d", sp.cfg.MaxPlies)
	}

	result := &SelfPlayResult{
		Record: &types.GameRecord{Kind: types.GameSelfPlay, Outcome: types.StatusOngoing},
	}
	for _, l := range sp.links {
		if err := l.ResetPosition(); err != nil {
			return result, err
		}
	}

	var kept []*types.DataRow
	record := result.Record
	for ply := 0; ply < sp.cfg.MaxPlies; ply++ {
		mover := sp.links[ply%2]
		if len(record.Moves) > 0 {
			if err := mover.SetPosition(record.Moves); err != nil {
				return result, err
			}
		}

		trace, err := mover.Search(ctx, sp.cfg.Limits)
		if err != nil {
			return result, err
		}
		record.Moves = append(record.Moves, trace.BestMove)

		ev, err := mover.Evaluate(ctx)
		if err != nil {
			return result, err
		}
		if err := sp.width.Check(ev.Features); err != nil {
			return result, fmt.Errorf("ply %d of game %d: %w", ply, game, err)
		}
		victims, err := mover.ApplyMove(ctx, trace.BestMove)
		if err != nil {
			return result, err
		}

		if sp.quiescent(trace, victims) {
			kept = append(kept, &types.DataRow{
				Features: ev.Features.Clone(),
				Worker:   sp.worker,
				Game:     game,
				Ply:      ply,
			})
		} else {
			result.Filtered++
		}

		status, err := mover.QueryStatus(ctx)
		if err != nil {
			return result, err
		}
		if status.IsTerminal() {
			record.Outcome = status
			label := OutcomeLabel(status, ply)
			for _, row := range kept {
				row.Label = label
			}
			result.Rows = kept
			return result, nil
		}
	}

	record.Capped = true
	sp.logger.Info("self-play game capped, discarding rows", map[string]any{
		"game":      game,
		"max_plies": sp.cfg.MaxPlies,
		"discarded": len(kept),
	})
	return result, nil
}

// quiescent reports whether a position is kept: the move captured nothing
// and the search score is known and bounded.
func (sp *SelfPlay) quiescent(trace *engine.SearchTrace, victims int) bool {
	if victims != 0 || !trace.HasScore {
		return false
	}
	score := trace.Score
	if score < 0 {
		score = -score
	}
	return score < sp.cfg.ScoreLimit
}

// OutcomeLabel maps the terminal status seen after the move at ply to the
// dataset label: mate after an odd ply is 1, mate after an even ply is 0,
// and a draw is 0.5.
func OutcomeLabel(status types.Status, ply int) types.Label {
	switch status {
	case types.StatusMate:
		if ply%2 == 1 {
			return types.LabelWin
		}
		return types.LabelLoss
	case types.StatusDraw:
		return types.LabelDraw
	default:
		return types.LabelDraw
	}
}
