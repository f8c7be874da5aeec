package engine_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justapithecus/sparring/engine"
	"github.com/justapithecus/sparring/engine/enginetest"
	"github.com/justapithecus/sparring/types"
)

func newLink(t *testing.T, cfg enginetest.Config, opts ...engine.Option) (*engine.Link, *enginetest.Fake) {
	t.Helper()
	opts = append([]engine.Option{engine.WithName("a")}, opts...)
	link, fake := enginetest.NewLink(cfg, opts...)
	t.Cleanup(func() { _ = link.Terminate() })
	return link, fake
}

func TestLink_ConfigureAndSetPosition(t *testing.T) {
	link, fake := newLink(t, enginetest.Config{})
	ctx := context.Background()

	require.NoError(t, link.Configure("hash", "64"))
	require.NoError(t, link.SetPosition(types.MoveHistory{"a1", "b2"}))
	// Ready forces the preceding fire-and-forget commands to be consumed.
	require.NoError(t, link.Ready(ctx))

	v, ok := fake.Option("hash")
	assert.True(t, ok)
	assert.Equal(t, "64", v)
	assert.Equal(t, []string{"a1", "b2"}, fake.History())

	require.NoError(t, link.ResetPosition())
	require.NoError(t, link.Ready(ctx))
	assert.Empty(t, fake.History())

	assert.Equal(t, []string{
		"setoption name hash value 64",
		"position startpos moves a1 b2",
		"isready",
		"position startpos",
		"isready",
	}, link.Commands())
	assert.Equal(t, 5, link.CommandsSent())
	assert.Equal(t, engine.StateIdle, link.State())
}

func TestLink_SearchDiscardsPreamble(t *testing.T) {
	cfg := enginetest.Config{
		Preamble: []string{"engine v1 ready", "bestmove bogus"},
		Score:    func(int) int { return 42 },
	}
	link, _ := newLink(t, cfg)

	trace, err := link.Search(context.Background(), engine.ClockLimit(3000, 0.3))
	require.NoError(t, err)

	want := cfg.Moves(nil)[0]
	assert.Equal(t, types.Move(want), trace.BestMove)
	assert.True(t, trace.HasScore)
	assert.Equal(t, 42, trace.Score)
	require.NotEmpty(t, trace.Lines)
	assert.Equal(t, "info depth 0 nodes 1", trace.Lines[0])
	assert.Equal(t, "bestmove "+want, trace.Lines[len(trace.Lines)-1])
	assert.Equal(t, []string{"go time 3000 inc 0.3"}, link.Commands())
}

func TestLink_SearchWithoutScore(t *testing.T) {
	link, _ := newLink(t, enginetest.Config{NoScore: true})

	trace, err := link.Search(context.Background(), engine.DepthLimit(4))
	require.NoError(t, err)
	assert.False(t, trace.HasScore)
}

func TestLink_BestMove(t *testing.T) {
	cfg := enginetest.Config{}
	link, _ := newLink(t, cfg)

	m, err := link.BestMove(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, types.Move(cfg.Moves(nil)[0]), m)
	assert.Equal(t, []string{"go depth 4"}, link.Commands())
}

func TestLink_Evaluate(t *testing.T) {
	cfg := enginetest.Config{Coefficients: 6, Score: func(int) int { return -7 }}
	link, _ := newLink(t, cfg)

	ev, err := link.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.FeatureVector(cfg.Features(nil)), ev.Features)
	assert.True(t, ev.HasScore)
	assert.Equal(t, -7, ev.Score)
}

func TestLink_EvaluateSkipsDetailLines(t *testing.T) {
	cfg := enginetest.Config{
		Coefficients: 3,
		Score:        func(int) int { return 12 },
		EvalDetail: []string{
			"PMATerial bonus for White Pawn on c3 is 100",
			"PTOUCH penalty for Black Pawn on d5 is -4",
			"MFACE bonus for White King on e1 is 9",
		},
	}
	link, _ := newLink(t, cfg)
	ctx := context.Background()

	ev, err := link.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.FeatureVector(cfg.Features(nil)), ev.Features)
	assert.Equal(t, 12, ev.Score)
	assert.Equal(t, engine.StateIdle, link.State())

	// The reply was consumed in full; the next request reads its own answer.
	_, err = link.QueryStatus(ctx)
	require.NoError(t, err)
}

func TestLink_EvaluateDesync(t *testing.T) {
	link, _ := newLink(t, enginetest.Config{EvalBlank: true})

	_, err := link.Evaluate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrProtocolDesync)
	assert.Equal(t, engine.StateBroken, link.State())

	// A broken link refuses further requests.
	_, err = link.QueryStatus(context.Background())
	assert.ErrorIs(t, err, engine.ErrProtocolDesync)
}

func TestLink_GenerateAndRandomMove(t *testing.T) {
	cfg := enginetest.Config{Branch: 5}
	link, _ := newLink(t, cfg, engine.WithRand(rand.New(rand.NewPCG(1, 2))))
	ctx := context.Background()

	moves, err := link.GenerateMoves(ctx)
	require.NoError(t, err)
	require.Len(t, moves, 5)

	m, err := link.RandomLegalMove(ctx)
	require.NoError(t, err)
	assert.Contains(t, moves, m)
}

func TestLink_NoMovesAvailable(t *testing.T) {
	link, _ := newLink(t, enginetest.Config{MateAt: 1})
	ctx := context.Background()

	require.NoError(t, link.SetPosition(types.MoveHistory{"a1"}))
	moves, err := link.GenerateMoves(ctx)
	require.NoError(t, err)
	assert.Empty(t, moves)

	_, err = link.RandomLegalMove(ctx)
	assert.ErrorIs(t, err, engine.ErrNoMovesAvailable)
	assert.False(t, engine.IsWorkerFatal(err))
	assert.Equal(t, engine.StateIdle, link.State())
}

func TestLink_ApplyMove(t *testing.T) {
	cfg := enginetest.Config{Victims: func(int, string) int { return 2 }}
	link, fake := newLink(t, cfg)
	ctx := context.Background()

	first := types.Move(cfg.Moves(nil)[0])
	n, err := link.ApplyMove(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{string(first)}, fake.History())
}

func TestLink_ApplyIllegalMove(t *testing.T) {
	link, _ := newLink(t, enginetest.Config{})

	_, err := link.ApplyMove(context.Background(), "zz")
	assert.ErrorIs(t, err, engine.ErrIllegalMove)
}

func TestLink_QueryStatus(t *testing.T) {
	tests := []struct {
		name string
		cfg  enginetest.Config
		ply  int
		want types.Status
	}{
		{"ongoing", enginetest.Config{}, 0, types.StatusOngoing},
		{"mate", enginetest.Config{MateAt: 1}, 1, types.StatusMate},
		{"draw", enginetest.Config{DrawAt: 1}, 1, types.StatusDraw},
		{"unrecognized", enginetest.Config{StatusText: "thinking"}, 0, types.StatusOngoing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link, _ := newLink(t, tt.cfg)
			if tt.ply > 0 {
				require.NoError(t, link.SetPosition(types.MoveHistory{"a1"}))
			}
			got, err := link.QueryStatus(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLink_QueryPosition(t *testing.T) {
	link, _ := newLink(t, enginetest.Config{})
	require.NoError(t, link.SetPosition(types.MoveHistory{"a1", "b2"}))

	pos, err := link.QueryPosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "startpos/a1/b2", pos)
}

func TestLink_StreamClosed(t *testing.T) {
	link, _ := newLink(t, enginetest.Config{CrashOn: "eval"})

	_, err := link.Evaluate(context.Background())
	assert.ErrorIs(t, err, engine.ErrStreamClosed)
	assert.True(t, engine.IsWorkerFatal(err))
}

func TestLink_ReadTimeout(t *testing.T) {
	link, _ := newLink(t, enginetest.Config{HangOn: "go"}, engine.WithReadTimeout(50*time.Millisecond))

	_, err := link.Search(context.Background(), engine.DepthLimit(4))
	assert.ErrorIs(t, err, engine.ErrProtocolTimeout)
	assert.Equal(t, engine.StateBroken, link.State())
}

func TestLink_ContextCancel(t *testing.T) {
	link, _ := newLink(t, enginetest.Config{HangOn: "eval"})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := link.Evaluate(ctx)
	assert.ErrorIs(t, err, engine.ErrCanceled)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestLink_TerminateUnblocksRequest(t *testing.T) {
	link, fake := newLink(t, enginetest.Config{HangOn: "go"})

	errCh := make(chan error, 1)
	go func() {
		_, err := link.Search(context.Background(), engine.DepthLimit(4))
		errCh <- err
	}()

	// Wait for the command to reach the engine.
	require.Eventually(t, func() bool { return len(fake.Received()) > 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, link.Terminate())

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.True(t, engine.IsWorkerFatal(err))
	case <-time.After(2 * time.Second):
		t.Fatal("search did not return after Terminate")
	}
	assert.True(t, fake.Killed())
}

func TestLink_TerminateIdempotent(t *testing.T) {
	link, _ := newLink(t, enginetest.Config{})

	require.NoError(t, link.Terminate())
	require.NoError(t, link.Terminate())
	assert.Equal(t, engine.StateClosed, link.State())

	_, err := link.QueryStatus(context.Background())
	assert.ErrorIs(t, err, engine.ErrLinkClosed)
}

func TestLink_CommandLogBounded(t *testing.T) {
	link, _ := newLink(t, enginetest.Config{}, engine.WithCommandLogSize(2))

	for _, v := range []string{"1", "2", "3"} {
		require.NoError(t, link.Configure("x", v))
	}
	assert.Equal(t, []string{"setoption name x value 2", "setoption name x value 3"}, link.Commands())
	assert.Equal(t, 3, link.CommandsSent())
}
