package types

import (
	"errors"
	"fmt"
	"strings"
)

// Move is an opaque protocol token identifying one ply.
// The driver never interprets it beyond passing it through.
type Move string

// MoveHistory is the ordered list of plies from the start position.
// Insertion order is ply order.
type MoveHistory []Move

// Strings returns the history as plain strings, in ply order.
func (h MoveHistory) Strings() []string {
	out := make([]string, len(h))
	for i, m := range h {
		out[i] = string(m)
	}
	return out
}

// Clone returns an independent copy of the history.
func (h MoveHistory) Clone() MoveHistory {
	if h == nil {
		return nil
	}
	out := make(MoveHistory, len(h))
	copy(out, h)
	return out
}

// Status is the terminal-state tag reported by an engine's status query.
type Status string

const (
	// StatusOngoing means the game continues.
	StatusOngoing Status = "ongoing"
	// StatusMate means one side has won.
	StatusMate Status = "mate"
	// StatusDraw means the game is drawn.
	StatusDraw Status = "draw"
)

// IsTerminal reports whether the status ends the game.
func (s Status) IsTerminal() bool {
	return s == StatusMate || s == StatusDraw
}

// ParseStatus maps a raw status line to a Status.
// Detection is substring containment: any line mentioning "mate" is mate,
// any other line mentioning "draw" is a draw. Everything else is ongoing;
// recognized reports whether the line was one of the known forms.
func ParseStatus(line string) (status Status, recognized bool) {
	switch {
	case strings.Contains(line, "mate"):
		return StatusMate, true
	case strings.Contains(line, "draw"):
		return StatusDraw, true
	case strings.Contains(line, "ok"), strings.Contains(line, "ongoing"):
		return StatusOngoing, true
	default:
		return StatusOngoing, false
	}
}

// GameKind distinguishes randomized games from principal-line games.
type GameKind string

const (
	// GameRandom picks a uniform random legal move every ply.
	GameRandom GameKind = "random"
	// GameBest plays the engine's best move at a fixed depth.
	GameBest GameKind = "best"
	// GameSelfPlay alternates two engines searching on a clock.
	GameSelfPlay GameKind = "selfplay"
)

// FeatureVector is the ordered list of evaluation coefficients reported for
// one position. Its length is fixed for a given engine build.
type FeatureVector []int

// Clone returns an independent copy of the vector.
func (v FeatureVector) Clone() FeatureVector {
	if v == nil {
		return nil
	}
	out := make(FeatureVector, len(v))
	copy(out, v)
	return out
}

// ErrLengthMismatch indicates feature vectors of different lengths within
// one run, either between two engines or between plies of one engine.
var ErrLengthMismatch = errors.New("feature vector length mismatch")

// Width pins the feature vector length seen first and rejects vectors of
// any other length. The zero value is unpinned.
type Width struct {
	n      int
	pinned bool
}

// Check pins v's length on first use and afterwards fails with
// ErrLengthMismatch when v has another length.
func (w *Width) Check(v FeatureVector) error {
	if !w.pinned {
		w.n, w.pinned = len(v), true
		return nil
	}
	if len(v) != w.n {
		return fmt.Errorf("%w: %d coefficients, pinned at %d", ErrLengthMismatch, len(v), w.n)
	}
	return nil
}

// Pinned returns the pinned length, if any.
func (w *Width) Pinned() (int, bool) {
	return w.n, w.pinned
}

// GameRecord is the sealed result of one simulated game.
type GameRecord struct {
	// Kind is the kind of game played.
	Kind GameKind `json:"kind" msgpack:"kind"`
	// Moves are the plies played, in order.
	Moves MoveHistory `json:"moves" msgpack:"moves"`
	// Outcome is the terminal tag; ongoing if the ply cap was hit.
	Outcome Status `json:"outcome" msgpack:"outcome"`
	// Features holds one vector per evaluated ply when the caller records them.
	Features []FeatureVector `json:"features,omitempty" msgpack:"features,omitempty"`
	// Capped is true when the game stopped at the ply cap.
	Capped bool `json:"capped" msgpack:"capped"`
}

// Plies returns the number of moves played.
func (g *GameRecord) Plies() int {
	return len(g.Moves)
}
