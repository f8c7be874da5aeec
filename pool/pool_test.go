package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/justapithecus/sparring/divergence"
	"github.com/justapithecus/sparring/engine"
	"github.com/justapithecus/sparring/engine/enginetest"
	"github.com/justapithecus/sparring/game"
	"github.com/justapithecus/sparring/metrics"
	"github.com/justapithecus/sparring/policy"
	"github.com/justapithecus/sparring/sink"
	"github.com/justapithecus/sparring/types"
)

// fakeLauncher opens in-process fakes and remembers them by worker and role.
type fakeLauncher struct {
	cfgA, cfgB enginetest.Config
	failOn     map[string]error

	mu    sync.Mutex
	fakes map[string]*enginetest.Fake
}

func newFakeLauncher(t *testing.T, cfgA, cfgB enginetest.Config) *fakeLauncher {
	t.Helper()
	return &fakeLauncher{cfgA: cfgA, cfgB: cfgB, failOn: map[string]error{}, fakes: map[string]*enginetest.Fake{}}
}

func key(worker int, role string) string {
	return fmt.Sprintf("%d/%s", worker, role)
}

func (l *fakeLauncher) launch(_ context.Context, worker int, role string) (Engine, error) {
	if err := l.failOn[key(worker, role)]; err != nil {
		return nil, err
	}
	cfg := l.cfgA
	if role == RoleB {
		cfg = l.cfgB
	}
	link, fake := enginetest.NewLink(cfg, engine.WithName(key(worker, role)))
	l.mu.Lock()
	l.fakes[key(worker, role)] = fake
	l.mu.Unlock()
	return link, nil
}

func (l *fakeLauncher) fake(worker int, role string) *enginetest.Fake {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fakes[key(worker, role)]
}

func (l *fakeLauncher) all() []*enginetest.Fake {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*enginetest.Fake, 0, len(l.fakes))
	for _, f := range l.fakes {
		out = append(out, f)
	}
	return out
}

func smallPlan() divergence.Plan {
	return divergence.Plan{RandomGames: 3, MaxPlies: 30, BestDepth: 2}
}

func TestRunCheck_IdenticalEnginesPass(t *testing.T) {
	cfg := enginetest.Config{MateAt: 20}
	fl := newFakeLauncher(t, cfg, cfg)
	collector := metrics.NewCollector("check", "fs", "run-1")

	agg, err := RunCheck(t.Context(), CheckConfig{
		Config: Config{Workers: 3, Launcher: fl.launch, Metrics: collector},
		Plan:   smallPlan(),
	})
	if err != nil {
		t.Fatalf("RunCheck() error = %v", err)
	}
	if !agg.Pass {
		t.Fatalf("Pass = false, failures %+v", agg.Failures())
	}
	if len(agg.Workers) != 3 {
		t.Fatalf("len(Workers) = %d, want 3", len(agg.Workers))
	}
	for i, w := range agg.Workers {
		if w.Worker != i {
			t.Errorf("Workers[%d].Worker = %d", i, w.Worker)
		}
		if w.GamesPlayed != 4 {
			t.Errorf("worker %d GamesPlayed = %d, want 4", i, w.GamesPlayed)
		}
	}

	snap := collector.Snapshot()
	if snap.GamesPlayed != 12 {
		t.Errorf("GamesPlayed metric = %d, want 12", snap.GamesPlayed)
	}
	if snap.LinksSpawned != 6 {
		t.Errorf("LinksSpawned = %d, want 6", snap.LinksSpawned)
	}
	for _, f := range fl.all() {
		if !f.Killed() {
			t.Error("every link must be terminated after the run")
		}
	}
}

func TestRunCheck_DivergenceReportedWithCommandLogs(t *testing.T) {
	cfgA := enginetest.Config{MateAt: 20}
	cfgB := cfgA
	cfgB.Skew = &enginetest.Skew{Index: 1, Amount: 5, FromPly: 3}
	fl := newFakeLauncher(t, cfgA, cfgB)

	var mu sync.Mutex
	var reports []*types.DivergenceReport
	onDiv := func(r *types.DivergenceReport, cmdsA, cmdsB []string) {
		if len(cmdsA) == 0 || len(cmdsB) == 0 {
			t.Error("command logs must not be empty")
		}
		mu.Lock()
		reports = append(reports, r)
		mu.Unlock()
	}

	agg, err := RunCheck(t.Context(), CheckConfig{
		Config:       Config{Workers: 2, Launcher: fl.launch},
		Plan:         smallPlan(),
		OnDivergence: onDiv,
	})
	if err != nil {
		t.Fatalf("RunCheck() error = %v", err)
	}
	if agg.Pass {
		t.Fatal("Pass = true, want false")
	}
	if got := len(agg.Divergences()); got != 2 {
		t.Fatalf("len(Divergences()) = %d, want 2", got)
	}
	if len(reports) != 2 {
		t.Fatalf("handler called %d times, want 2", len(reports))
	}
	for _, r := range agg.Divergences() {
		if r.Ply != 3 {
			t.Errorf("divergence ply = %d, want 3", r.Ply)
		}
		if r.FirstDifference() != 1 {
			t.Errorf("FirstDifference() = %d, want 1", r.FirstDifference())
		}
	}
}

func TestRunCheck_LengthMismatchCancelsRun(t *testing.T) {
	cfgA := enginetest.Config{MateAt: 20}
	cfgB := cfgA
	cfgB.TruncateFrom = 2
	fl := newFakeLauncher(t, cfgA, cfgB)

	agg, err := RunCheck(t.Context(), CheckConfig{
		Config: Config{Workers: 2, Launcher: fl.launch},
		Plan:   smallPlan(),
	})
	if !errors.Is(err, divergence.ErrLengthMismatch) {
		t.Fatalf("RunCheck() error = %v, want ErrLengthMismatch", err)
	}
	if agg.Pass {
		t.Error("Pass = true, want false")
	}
}

func TestRunCheck_LaunchFailureStopsOnlyThatWorker(t *testing.T) {
	cfg := enginetest.Config{MateAt: 10}
	fl := newFakeLauncher(t, cfg, cfg)
	launchErr := errors.New("no such binary")
	fl.failOn[key(1, RoleB)] = launchErr

	agg, err := RunCheck(t.Context(), CheckConfig{
		Config: Config{Workers: 3, Launcher: fl.launch},
		Plan:   smallPlan(),
	})
	if err != nil {
		t.Fatalf("RunCheck() error = %v", err)
	}
	if agg.Pass {
		t.Fatal("Pass = true, want false")
	}
	failures := agg.Failures()
	if len(failures) != 1 || failures[0].Worker != 1 {
		t.Fatalf("failures = %+v, want worker 1 only", failures)
	}
	if !errors.Is(failures[0].Err, launchErr) {
		t.Errorf("failure error = %v", failures[0].Err)
	}
	// Link A of the failed worker was opened before B failed.
	if f := fl.fake(1, RoleA); f == nil || !f.Killed() {
		t.Error("link a of worker 1 must be terminated")
	}
	if !agg.Workers[0].Pass || !agg.Workers[2].Pass {
		t.Error("healthy workers must pass")
	}
}

func TestRunCheck_OptionsSentToBothLinks(t *testing.T) {
	cfg := enginetest.Config{MateAt: 4}
	fl := newFakeLauncher(t, cfg, cfg)

	_, err := RunCheck(t.Context(), CheckConfig{
		Config: Config{
			Workers:  1,
			Launcher: fl.launch,
			Options:  []engine.OptionSetting{{Name: "Hash", Value: "64"}},
		},
		Plan: divergence.Plan{RandomGames: 1, MaxPlies: 10, BestDepth: 1},
	})
	if err != nil {
		t.Fatalf("RunCheck() error = %v", err)
	}
	for _, role := range []string{RoleA, RoleB} {
		if v, ok := fl.fake(0, role).Option("Hash"); !ok || v != "64" {
			t.Errorf("link %s Hash = %q, %v", role, v, ok)
		}
	}
}

func TestRunCheck_InvalidConfig(t *testing.T) {
	fl := newFakeLauncher(t, enginetest.Config{}, enginetest.Config{})
	if _, err := RunCheck(t.Context(), CheckConfig{Config: Config{Workers: 0, Launcher: fl.launch}, Plan: smallPlan()}); err == nil {
		t.Error("zero workers must be rejected")
	}
	if _, err := RunCheck(t.Context(), CheckConfig{Config: Config{Workers: 1}, Plan: smallPlan()}); err == nil {
		t.Error("missing launcher must be rejected")
	}
	if _, err := RunCheck(t.Context(), CheckConfig{Config: Config{Workers: 1, Launcher: fl.launch}}); err == nil {
		t.Error("zero plan must be rejected")
	}
}

func selfPlayConfig(maxPlies int) game.SelfPlayConfig {
	cfg := game.DefaultSelfPlayConfig()
	cfg.MaxPlies = maxPlies
	return cfg
}

func TestRunDatagen_EveryPushedRowPersisted(t *testing.T) {
	cfg := enginetest.Config{MateAt: 9}
	fl := newFakeLauncher(t, cfg, cfg)
	stub := policy.NewStubSink()
	collector := metrics.NewCollector("datagen", "fs", "run-1")
	s := sink.New(sink.NewChannel(4), policy.NewStrictPolicy(stub), nil, collector)

	res, err := RunDatagen(t.Context(), DatagenConfig{
		Config:   Config{Workers: 2, Launcher: fl.launch, Metrics: collector},
		Games:    3,
		SelfPlay: selfPlayConfig(50),
	}, s)
	if err != nil {
		t.Fatalf("RunDatagen() error = %v", err)
	}
	if len(res.Failures()) != 0 {
		t.Fatalf("failures = %+v", res.Failures())
	}

	kept := 0
	for _, p := range res.Producers {
		if p.Games != 3 {
			t.Errorf("worker %d Games = %d, want 3", p.Worker, p.Games)
		}
		kept += p.RowsKept
	}
	// Nine plies per game, all quiescent with the default fake.
	if kept != 2*3*9 {
		t.Errorf("rows kept = %d, want %d", kept, 2*3*9)
	}
	if got := len(stub.Rows()); got != kept {
		t.Errorf("rows persisted = %d, want %d", got, kept)
	}
	if res.Drain.Persisted != int64(kept) {
		t.Errorf("Drain.Persisted = %d, want %d", res.Drain.Persisted, kept)
	}
	if !s.Channel().Sealed() {
		t.Error("channel must be sealed after the run")
	}
	if !stub.Stats().Closed {
		t.Error("sink must be closed after the run")
	}
	if collector.Snapshot().RowsKept != int64(kept) {
		t.Errorf("RowsKept metric = %d, want %d", collector.Snapshot().RowsKept, kept)
	}
}

func TestRunDatagen_PersistenceFailureDoesNotBlockProducers(t *testing.T) {
	cfg := enginetest.Config{MateAt: 9}
	fl := newFakeLauncher(t, cfg, cfg)
	stub := policy.NewStubSink()
	stub.ErrorOnWrite = errors.New("disk full")
	s := sink.New(sink.NewChannel(1), policy.NewStrictPolicy(stub), nil, nil)

	done := make(chan struct{})
	var res DatagenResult
	var err error
	go func() {
		defer close(done)
		res, err = RunDatagen(t.Context(), DatagenConfig{
			Config:   Config{Workers: 2, Launcher: fl.launch},
			Games:    2,
			SelfPlay: selfPlayConfig(50),
		}, s)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("RunDatagen blocked after a persistence failure")
	}
	if !errors.Is(err, stub.ErrorOnWrite) {
		t.Fatalf("RunDatagen() error = %v, want write error", err)
	}
	if res.Drain.Persisted != 0 || res.Drain.Discarded == 0 {
		t.Errorf("Drain = %+v, want no persisted rows and some discarded", res.Drain)
	}
}

func TestRunDatagen_UnboundedStopsOnCancel(t *testing.T) {
	cfg := enginetest.Config{MateAt: 5}
	fl := newFakeLauncher(t, cfg, cfg)
	stub := policy.NewStubSink()
	s := sink.New(sink.NewChannel(8), policy.NewStrictPolicy(stub), nil, nil)

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	res, err := RunDatagen(ctx, DatagenConfig{
		Config:   Config{Workers: 2, Launcher: fl.launch},
		SelfPlay: selfPlayConfig(50),
	}, s)
	if err != nil {
		t.Fatalf("RunDatagen() error = %v", err)
	}
	if len(res.Failures()) != 0 {
		t.Errorf("cancellation must not be reported as failure: %+v", res.Failures())
	}
	if int64(len(stub.Rows())) != res.Drain.Persisted {
		t.Errorf("persisted %d rows, drain reports %d", len(stub.Rows()), res.Drain.Persisted)
	}
}

func TestRunDatagen_CappedGamesEmitNoRows(t *testing.T) {
	cfg := enginetest.Config{}
	fl := newFakeLauncher(t, cfg, cfg)
	stub := policy.NewStubSink()
	s := sink.New(sink.NewChannel(8), policy.NewStrictPolicy(stub), nil, nil)

	res, err := RunDatagen(t.Context(), DatagenConfig{
		Config:   Config{Workers: 1, Launcher: fl.launch},
		Games:    2,
		SelfPlay: selfPlayConfig(12),
	}, s)
	if err != nil {
		t.Fatalf("RunDatagen() error = %v", err)
	}
	if res.Producers[0].Capped != 2 {
		t.Errorf("Capped = %d, want 2", res.Producers[0].Capped)
	}
	if len(stub.Rows()) != 0 {
		t.Errorf("capped games persisted %d rows", len(stub.Rows()))
	}
}

func TestCheckWorker_PanickingHandlerStillTerminatesLinks(t *testing.T) {
	cfgA := enginetest.Config{MateAt: 20}
	cfgB := enginetest.Config{MateAt: 20, Skew: &enginetest.Skew{Index: 1, Amount: 1}}
	fl := newFakeLauncher(t, cfgA, cfgB)
	cfg := CheckConfig{
		Config: Config{Workers: 1, Launcher: fl.launch},
		Plan:   smallPlan(),
		OnDivergence: func(*types.DivergenceReport, []string, []string) {
			panic("handler failed")
		},
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected the handler panic to propagate")
			}
		}()
		cfg.checkWorker(t.Context(), 0)
	}()

	for _, role := range []string{RoleA, RoleB} {
		if f := fl.fake(0, role); f == nil || !f.Killed() {
			t.Errorf("link %s left running after a panic", role)
		}
	}
}
