// Package game drives simulated games over one or more engine links.
//
// A Session holds the canonical move history. Every link it manages is
// re-anchored with the full history after each ply, so all links share the
// same position whenever the per-ply hook runs.
package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/justapithecus/sparring/engine"
	"github.com/justapithecus/sparring/log"
	"github.com/justapithecus/sparring/types"
)

// Link is the subset of engine.Link a session needs.
type Link interface {
	Name() string
	ResetPosition() error
	SetPosition(moves types.MoveHistory) error
	RandomLegalMove(ctx context.Context) (types.Move, error)
	BestMove(ctx context.Context, depth int) (types.Move, error)
	Search(ctx context.Context, limits engine.SearchLimits) (*engine.SearchTrace, error)
	Evaluate(ctx context.Context) (*engine.Evaluation, error)
	ApplyMove(ctx context.Context, move types.Move) (int, error)
	QueryStatus(ctx context.Context) (types.Status, error)
	QueryPosition(ctx context.Context) (string, error)
}

var _ Link = (*engine.Link)(nil)

// PlyHook runs once per ply before the next move is chosen. ply is the
// number of moves already played and moves is a copy of the history.
// A non-nil error aborts the game and is returned by the Play method.
type PlyHook func(ctx context.Context, ply int, moves types.MoveHistory) error

// Session plays games where the first link chooses moves and polls status
// while every link tracks the position.
type Session struct {
	links  []Link
	hook   PlyHook
	logger *log.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithHook sets the per-ply hook.
func WithHook(hook PlyHook) Option {
	return func(s *Session) { s.hook = hook }
}

// WithLogger sets the session logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// NewSession creates a session over primary and any followers.
func NewSession(primary Link, followers []Link, opts ...Option) *Session {
	s := &Session{
		links:  append([]Link{primary}, followers...),
		logger: log.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlayRandomGame plays uniform random legal moves until the primary link
// reports mate or draw, or maxPlies moves have been played.
func (s *Session) PlayRandomGame(ctx context.Context, maxPlies int) (*types.GameRecord, error) {
	return s.play(ctx, types.GameRandom, maxPlies, func(ctx context.Context, l Link) (types.Move, error) {
		return l.RandomLegalMove(ctx)
	})
}

// PlayBestGame plays the primary link's best move at a fixed search depth
// until terminal status or maxPlies.
func (s *Session) PlayBestGame(ctx context.Context, depth, maxPlies int) (*types.GameRecord, error) {
	return s.play(ctx, types.GameBest, maxPlies, func(ctx context.Context, l Link) (types.Move, error) {
		return l.BestMove(ctx, depth)
	})
}

type chooser func(ctx context.Context, l Link) (types.Move, error)

func (s *Session) play(ctx context.Context, kind types.GameKind, maxPlies int, choose chooser) (*types.GameRecord, error) {
	if maxPlies <= 0 {
		return nil, fmt.Errorf("max plies must be positive, got %d", maxPlies)
	}

	record := &types.GameRecord{Kind: kind, Outcome: types.StatusOngoing}
	for _, l := range s.links {
		if err := l.ResetPosition(); err != nil {
			return record, err
		}
	}

	primary := s.links[0]
	for ply := 0; ply < maxPlies; ply++ {
		if s.hook != nil {
			if err := s.hook(ctx, ply, record.Moves.Clone()); err != nil {
				return record, err
			}
		}

		move, err := choose(ctx, primary)
		if errors.Is(err, engine.ErrNoMovesAvailable) {
			record.Outcome = s.outcomeWithoutMoves(ctx, primary)
			return record, nil
		}
		if err != nil {
			return record, err
		}

		record.Moves = append(record.Moves, move)
		for _, l := range s.links {
			if err := l.SetPosition(record.Moves); err != nil {
				return record, err
			}
		}

		status, err := primary.QueryStatus(ctx)
		if err != nil {
			return record, err
		}
		if status.IsTerminal() {
			record.Outcome = status
			return record, nil
		}
	}

	record.Capped = true
	s.logger.Debug("game reached ply cap", map[string]any{
		"kind":      string(kind),
		"max_plies": maxPlies,
	})
	return record, nil
}

// outcomeWithoutMoves resolves the terminal tag when the engine listed no
// legal moves before status reported the game over.
func (s *Session) outcomeWithoutMoves(ctx context.Context, l Link) types.Status {
	status, err := l.QueryStatus(ctx)
	if err == nil && status.IsTerminal() {
		return status
	}
	s.logger.Warn("no legal moves at non-terminal status", map[string]any{
		"link": l.Name(),
	})
	return types.StatusDraw
}
