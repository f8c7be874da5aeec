package divergence

import (
	"context"
	"errors"
	"testing"

	"github.com/justapithecus/sparring/engine"
	"github.com/justapithecus/sparring/engine/enginetest"
	"github.com/justapithecus/sparring/types"
)

func newChecker(t *testing.T, cfgA, cfgB enginetest.Config) *Checker {
	t.Helper()
	a, _ := enginetest.NewLink(cfgA, engine.WithName("a"))
	b, _ := enginetest.NewLink(cfgB, engine.WithName("b"))
	t.Cleanup(func() {
		_ = a.Terminate()
		_ = b.Terminate()
	})
	return NewChecker(a, b, 0, nil)
}

func TestChecker_IdenticalEnginesPass(t *testing.T) {
	cfg := enginetest.Config{MateAt: 40}
	c := newChecker(t, cfg, cfg)

	res := c.Run(t.Context(), Plan{RandomGames: 5, MaxPlies: 200, BestDepth: 4})
	if !res.Pass {
		t.Fatalf("Pass = false, err = %v, divergence = %+v", res.Err, res.Divergence)
	}
	if res.Divergence != nil {
		t.Error("unexpected divergence report")
	}
	if res.GamesPlayed != 6 {
		t.Errorf("GamesPlayed = %d, want 6", res.GamesPlayed)
	}
	// 40 positions compared per game, the mating position excluded.
	if res.PliesChecked != 6*40 {
		t.Errorf("PliesChecked = %d, want %d", res.PliesChecked, 6*40)
	}
}

func TestChecker_CappedGamesStillPass(t *testing.T) {
	c := newChecker(t, enginetest.Config{}, enginetest.Config{})

	res := c.Run(t.Context(), Plan{RandomGames: 2, MaxPlies: 10, BestDepth: 2})
	if !res.Pass {
		t.Fatalf("Pass = false, err = %v", res.Err)
	}
}

func TestChecker_SkewedCoefficientDiverges(t *testing.T) {
	cfgA := enginetest.Config{}
	cfgB := enginetest.Config{Skew: &enginetest.Skew{Index: 2, Amount: 1}}
	c := newChecker(t, cfgA, cfgB)

	res := c.Run(t.Context(), Plan{RandomGames: 3, MaxPlies: 50, BestDepth: 4})
	if res.Pass {
		t.Fatal("Pass = true, want false")
	}
	if res.Err != nil {
		t.Fatalf("Err = %v, want nil", res.Err)
	}
	r := res.Divergence
	if r == nil {
		t.Fatal("missing divergence report")
	}
	if r.Position == "" {
		t.Error("Position is empty")
	}
	if r.Ply != 0 || r.Game != 0 || r.Kind != types.GameRandom {
		t.Errorf("report at ply %d game %d kind %s, want 0/0/random", r.Ply, r.Game, r.Kind)
	}
	if r.FirstDifference() != 2 {
		t.Errorf("FirstDifference() = %d, want 2", r.FirstDifference())
	}
	if res.GamesPlayed != 1 {
		t.Errorf("GamesPlayed = %d, want 1 (early exit)", res.GamesPlayed)
	}
}

func TestChecker_TerminalPositionNotCompared(t *testing.T) {
	cfgA := enginetest.Config{MateAt: 8}
	cfgB := enginetest.Config{MateAt: 8, Skew: &enginetest.Skew{Index: 0, Amount: -3, FromPly: 8}}
	c := newChecker(t, cfgA, cfgB)

	// The skew only affects the mating position, where the game stops.
	res := c.Run(t.Context(), Plan{RandomGames: 1, MaxPlies: 100, BestDepth: 4})
	if !res.Pass {
		t.Fatalf("Pass = false, want true: %+v", res.Divergence)
	}
}

func TestChecker_DivergenceInBestGame(t *testing.T) {
	cfgA := enginetest.Config{}
	cfgB := enginetest.Config{Skew: &enginetest.Skew{Index: 1, Amount: 5, FromPly: 15}}
	c := newChecker(t, cfgA, cfgB)

	// Random games are capped below the skewed ply; the best game is not.
	res := c.Run(t.Context(), Plan{RandomGames: 2, MaxPlies: 15, BestDepth: 4})
	if !res.Pass {
		t.Fatalf("random phase should pass under the cap: %+v", res.Divergence)
	}

	c = newChecker(t, cfgA, cfgB)
	res = c.Run(t.Context(), Plan{RandomGames: 0, MaxPlies: 30, BestDepth: 4})
	if res.Divergence == nil {
		t.Fatal("missing divergence in best game")
	}
	if res.Divergence.Kind != types.GameBest || res.Divergence.Ply != 15 {
		t.Errorf("report kind %s ply %d, want best/15", res.Divergence.Kind, res.Divergence.Ply)
	}
	if len(res.Divergence.Moves) != 15 {
		t.Errorf("report moves = %d, want 15", len(res.Divergence.Moves))
	}
}

func TestChecker_LengthMismatch(t *testing.T) {
	c := newChecker(t, enginetest.Config{Coefficients: 10}, enginetest.Config{Coefficients: 9})

	res := c.Run(t.Context(), DefaultPlan())
	if !errors.Is(res.Err, ErrLengthMismatch) {
		t.Fatalf("Err = %v, want ErrLengthMismatch", res.Err)
	}
	if !IsRunFatal(res.Err) {
		t.Error("IsRunFatal() = false, want true")
	}
	if res.Pass || res.Divergence != nil {
		t.Error("length mismatch must not be reported as pass or divergence")
	}
	if res.PliesChecked != 1 {
		t.Errorf("PliesChecked = %d, want 1", res.PliesChecked)
	}
}

func TestChecker_LengthChangeMidGame(t *testing.T) {
	c := newChecker(t, enginetest.Config{}, enginetest.Config{TruncateFrom: 3})

	res := c.Run(t.Context(), Plan{RandomGames: 1, MaxPlies: 20, BestDepth: 1})
	if !errors.Is(res.Err, ErrLengthMismatch) {
		t.Fatalf("Err = %v, want ErrLengthMismatch", res.Err)
	}
}

func TestChecker_BothLinksChangeLength(t *testing.T) {
	cfg := enginetest.Config{TruncateFrom: 3}
	c := newChecker(t, cfg, cfg)

	res := c.Run(t.Context(), Plan{RandomGames: 1, MaxPlies: 10, BestDepth: 1})
	if !errors.Is(res.Err, ErrLengthMismatch) {
		t.Fatalf("Err = %v, want ErrLengthMismatch", res.Err)
	}
	if res.Pass {
		t.Error("Pass = true, want false")
	}
	if res.PliesChecked != 4 {
		t.Errorf("PliesChecked = %d, want 4", res.PliesChecked)
	}
}

func TestChecker_ProtocolFailure(t *testing.T) {
	c := newChecker(t, enginetest.Config{}, enginetest.Config{CrashOn: "eval"})

	res := c.Run(t.Context(), DefaultPlan())
	if !errors.Is(res.Err, engine.ErrStreamClosed) {
		t.Fatalf("Err = %v, want ErrStreamClosed", res.Err)
	}
	if IsRunFatal(res.Err) {
		t.Error("stream failure must not be run-fatal")
	}
}

func TestChecker_CanceledContext(t *testing.T) {
	c := newChecker(t, enginetest.Config{}, enginetest.Config{})
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	res := c.Run(ctx, DefaultPlan())
	if res.Pass {
		t.Error("Pass = true on canceled context")
	}
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", res.Err)
	}
}
