// Package pool runs independent workers, each owning its own pair of engine
// links, and reduces their results.
package pool

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/justapithecus/sparring/engine"
	"github.com/justapithecus/sparring/game"
	"github.com/justapithecus/sparring/log"
	"github.com/justapithecus/sparring/metrics"
)

// Link roles within a worker.
const (
	RoleA = "a"
	RoleB = "b"
)

// Engine is a link the pool can configure and tear down.
type Engine interface {
	game.Link
	Configure(option, value string) error
	Ready(ctx context.Context) error
	Commands() []string
	Terminate() error
}

var _ Engine = (*engine.Link)(nil)

// Launcher opens the link for one role of one worker.
type Launcher func(ctx context.Context, worker int, role string) (Engine, error)

// ExecLauncher returns a Launcher spawning one process per link from the
// per-role exec configs. opts are applied to every link after the name.
func ExecLauncher(a, b engine.ExecConfig, logger *log.Logger, opts ...engine.Option) Launcher {
	if logger == nil {
		logger = log.NewNop()
	}
	return func(ctx context.Context, worker int, role string) (Engine, error) {
		cfg := a
		if role == RoleB {
			cfg = b
		}
		name := fmt.Sprintf("w%d-%s", worker, role)
		linkOpts := append([]engine.Option{
			engine.WithName(name),
			engine.WithLogger(logger.With(map[string]any{"link": name})),
		}, opts...)
		return engine.Spawn(ctx, cfg, linkOpts...)
	}
}

// Config configures a pool.
type Config struct {
	// Workers is the number of concurrent workers.
	Workers int
	// Launcher opens links. Required.
	Launcher Launcher
	// Options are sent to every link before the first game, in key order.
	Options []engine.OptionSetting
	// Logger receives pool lifecycle events. May be nil.
	Logger *log.Logger
	// Metrics may be nil.
	Metrics *metrics.Collector
}

func (c *Config) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Launcher == nil {
		return errors.New("launcher is required")
	}
	return nil
}

func (c *Config) logger() *log.Logger {
	if c.Logger == nil {
		return log.NewNop()
	}
	return c.Logger
}

// pair is the two links owned by one worker.
type pair struct {
	a, b Engine
}

// open launches, configures and readies both links. On failure every link
// already opened is terminated.
func (c *Config) open(ctx context.Context, worker int) (*pair, error) {
	p := &pair{}
	for _, role := range []string{RoleA, RoleB} {
		e, err := c.Launcher(ctx, worker, role)
		if err != nil {
			c.Metrics.IncLinkSpawnFailure()
			return nil, multierr.Append(fmt.Errorf("launch link %s: %w", role, err), p.close())
		}
		c.Metrics.IncLinkSpawned()
		if role == RoleA {
			p.a = e
		} else {
			p.b = e
		}
	}

	for _, e := range []Engine{p.a, p.b} {
		for _, opt := range c.Options {
			if err := e.Configure(opt.Name, opt.Value); err != nil {
				return nil, multierr.Append(err, p.close())
			}
		}
		if err := e.Ready(ctx); err != nil {
			return nil, multierr.Append(err, p.close())
		}
	}
	return p, nil
}

// close terminates whichever links are open.
func (p *pair) close() error {
	var err error
	if p.a != nil {
		err = multierr.Append(err, p.a.Terminate())
	}
	if p.b != nil {
		err = multierr.Append(err, p.b.Terminate())
	}
	return err
}
