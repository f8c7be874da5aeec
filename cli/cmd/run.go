package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/sparring/adapter"
	"github.com/justapithecus/sparring/adapter/redis"
	"github.com/justapithecus/sparring/adapter/webhook"
	"github.com/justapithecus/sparring/cli/render"
	"github.com/justapithecus/sparring/cli/tui"
	"github.com/justapithecus/sparring/engine"
	"github.com/justapithecus/sparring/iox"
	"github.com/justapithecus/sparring/log"
	"github.com/justapithecus/sparring/metrics"
	"github.com/justapithecus/sparring/pool"
	"github.com/justapithecus/sparring/types"
)

// Exit codes of check and datagen.
const (
	exitSuccess            = 0
	exitDivergence         = 1
	exitEngineFailure      = 2
	exitConfigError        = 3
	exitPersistenceFailure = 4
)

// Adapter kinds.
const (
	adapterWebhook = "webhook"
	adapterRedis   = "redis"
)

// newLauncher builds the link launcher for a run. Tests replace it with
// in-process fake engines.
var newLauncher = pool.ExecLauncher

func outcomeToExitCode(status types.OutcomeStatus) int {
	switch status {
	case types.OutcomePass, types.OutcomeCompleted:
		return exitSuccess
	case types.OutcomeDivergence:
		return exitDivergence
	case types.OutcomeEngineFailure:
		return exitEngineFailure
	case types.OutcomeConfigError:
		return exitConfigError
	case types.OutcomePersistenceFailure:
		return exitPersistenceFailure
	default:
		return exitEngineFailure
	}
}

// configError reports an unusable invocation with exit code 3.
func configError(format string, args ...any) error {
	return cli.Exit(fmt.Sprintf(format, args...), exitConfigError)
}

// runEnv carries what every run needs besides its mode-specific settings.
type runEnv struct {
	meta      types.RunMeta
	logger    *log.Logger
	collector *metrics.Collector
	renderer  *render.Renderer
	stderr    io.Writer
	started   time.Time
}

func newRunEnv(c *cli.Context, mode types.Mode, s *runSettings, storageBackend string) (*runEnv, error) {
	r, err := render.NewRenderer(c)
	if err != nil {
		return nil, err
	}
	meta := types.RunMeta{RunID: s.runID, Mode: mode}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	stderr := c.App.ErrWriter
	if stderr == nil {
		stderr = os.Stderr
	}
	return &runEnv{
		meta:      meta,
		logger:    log.NewLogger(&meta).WithOutput(stderr),
		collector: metrics.NewCollector(string(mode), storageBackend, s.runID),
		renderer:  r,
		stderr:    stderr,
		started:   time.Now(),
	}, nil
}

// linkOptions are the engine options shared by every link of a run.
func (s *runSettings) linkOptions() []engine.Option {
	var opts []engine.Option
	if s.readTimeout > 0 {
		opts = append(opts, engine.WithReadTimeout(s.readTimeout))
	}
	return opts
}

// poolConfig is the pool configuration shared by check and datagen.
func (env *runEnv) poolConfig(s *runSettings) pool.Config {
	return pool.Config{
		Workers:  s.workers,
		Launcher: newLauncher(s.engineA, s.engineB, env.logger, s.linkOptions()...),
		Options:  s.options,
		Logger:   env.logger,
		Metrics:  env.collector,
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// serveMetrics exposes the collector on addr until the returned stop
// function is called. An empty addr serves nothing.
func serveMetrics(addr string, collector *metrics.Collector, logger *log.Logger) (stop func(), err error) {
	if addr == "" {
		return func() {}, nil
	}
	handler, err := metrics.Handler(collector)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", map[string]any{"error": err.Error()})
		}
	}()
	logger.Info("serving metrics", map[string]any{"addr": ln.Addr().String()})
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// buildAdapter constructs the configured notification adapter, or nil.
func buildAdapter(a adapterSettings) (adapter.Adapter, error) {
	switch a.kind {
	case "":
		return nil, nil
	case adapterWebhook:
		return webhook.New(webhook.Config{
			URL:     a.url,
			Headers: a.headers,
			Timeout: a.timeout,
			Retries: a.retries,
		})
	case adapterRedis:
		return redis.New(redis.Config{
			URL:     a.url,
			Channel: a.channel,
			Timeout: a.timeout,
			Retries: a.retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter %q", a.kind)
	}
}

// newEvent stamps the run-completed event for env.
func (env *runEnv) newEvent(status types.OutcomeStatus, workers int) *adapter.RunCompletedEvent {
	now := time.Now()
	return &adapter.RunCompletedEvent{
		Version:    types.Version,
		EventType:  adapter.EventTypeRunCompleted,
		RunID:      env.meta.RunID,
		Mode:       string(env.meta.Mode),
		Outcome:    string(status),
		ExitCode:   outcomeToExitCode(status),
		Workers:    workers,
		Timestamp:  now.UTC().Format(time.RFC3339Nano),
		DurationMs: now.Sub(env.started).Milliseconds(),
	}
}

// publish sends event through the configured adapter. A publish failure is
// logged and never changes the run's exit code.
func (env *runEnv) publish(ctx context.Context, a adapterSettings, event *adapter.RunCompletedEvent) {
	if a.kind == "" {
		return
	}
	pub, err := buildAdapter(a)
	if err != nil {
		env.logger.Warn("adapter setup failed", map[string]any{"adapter": a.kind, "error": err.Error()})
		return
	}
	defer iox.DiscardClose(pub)

	// The run context may already be canceled by an interrupt; the event
	// still goes out.
	if err := pub.Publish(context.WithoutCancel(ctx), event); err != nil {
		env.logger.Warn("run event publish failed", map[string]any{"adapter": a.kind, "error": err.Error()})
		return
	}
	env.logger.Info("run event published", map[string]any{"adapter": a.kind, "outcome": event.Outcome})
}

// finish prints the banner, publishes the event and returns the exit error.
func (env *runEnv) finish(c *cli.Context, a adapterSettings, banner tui.Banner, event *adapter.RunCompletedEvent, message string) error {
	if !c.Bool("quiet") {
		if err := env.renderer.Banner(banner); err != nil {
			env.logger.Warn("render banner failed", map[string]any{"error": err.Error()})
		}
	}
	env.publish(c.Context, a, event)
	_ = env.logger.Sync()
	if event.ExitCode == exitSuccess {
		return nil
	}
	return cli.Exit(message, event.ExitCode)
}

func field(label string, value any) tui.BannerField {
	return tui.BannerField{Label: label, Value: fmt.Sprint(value)}
}
