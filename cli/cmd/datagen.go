package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/sparring/cli/config"
	"github.com/justapithecus/sparring/cli/tui"
	"github.com/justapithecus/sparring/engine"
	"github.com/justapithecus/sparring/game"
	"github.com/justapithecus/sparring/lode"
	"github.com/justapithecus/sparring/policy"
	"github.com/justapithecus/sparring/pool"
	"github.com/justapithecus/sparring/sink"
	"github.com/justapithecus/sparring/types"
)

// DatagenCommand returns the datagen command: self-play games whose quiet
// positions become labeled training rows.
func DatagenCommand() *cli.Command {
	return &cli.Command{
		Name:  "datagen",
		Usage: "Generate labeled feature rows from engine self-play",
		Description: "Every worker plays self-play games between two links and pushes the quiet\n" +
			"positions of each finished game to a single writer. Exit codes: 0 done,\n" +
			"2 engine failure, 3 configuration error, 4 persistence failure.",
		Flags: concatFlags(engineFlags(), []cli.Flag{
			&cli.IntFlag{
				Name:    "games",
				Aliases: []string{"n"},
				Usage:   "Games per worker (0 = until interrupted)",
			},
			&cli.Float64Flag{
				Name:  "time-ms",
				Usage: "Search clock in milliseconds",
				Value: game.DefaultTimeMs,
			},
			&cli.Float64Flag{
				Name:  "inc",
				Usage: "Search increment",
				Value: game.DefaultInc,
			},
			&cli.IntFlag{
				Name:  "score-limit",
				Usage: "Drop positions whose |score| is not below this",
				Value: game.DefaultScoreLimit,
			},
			&cli.IntFlag{
				Name:  "max-plies",
				Usage: "Ply cap; a capped game yields no rows",
				Value: game.DefaultMaxPlies,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "CSV dataset file, appended to (ignored with --storage-backend)",
				Value:   lode.DefaultCSVPath,
			},
			&cli.IntFlag{
				Name:  "buffer",
				Usage: "Capacity of the row channel between workers and the writer",
				Value: sink.DefaultBuffer,
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Play and count rows without persisting them",
			},
		}, storageFlags(), adapterFlags(), outputFlags()),
		Action: datagenAction,
	}
}

type datagenSettings struct {
	games    int
	selfPlay game.SelfPlayConfig
	output   string
	buffer   int
	dryRun   bool
}

func resolveDatagenSettings(c *cli.Context, file *config.DatagenConfig) (*datagenSettings, error) {
	d := &datagenSettings{
		games: intSetting(c, "games", file.Games),
		selfPlay: game.SelfPlayConfig{
			Limits:     engine.ClockLimit(floatSetting(c, "time-ms", file.TimeMs), floatSetting(c, "inc", file.Inc)),
			ScoreLimit: intSetting(c, "score-limit", file.ScoreLimit),
			MaxPlies:   intSetting(c, "max-plies", file.MaxPlies),
		},
		output: stringSetting(c, "output", file.Output),
		buffer: intSetting(c, "buffer", file.Buffer),
		dryRun: c.Bool("dry-run"),
	}
	switch {
	case d.games < 0:
		return nil, fmt.Errorf("--games must not be negative, got %d", d.games)
	case d.selfPlay.MaxPlies <= 0:
		return nil, fmt.Errorf("--max-plies must be positive, got %d", d.selfPlay.MaxPlies)
	case d.selfPlay.ScoreLimit <= 0:
		return nil, fmt.Errorf("--score-limit must be positive, got %d", d.selfPlay.ScoreLimit)
	case d.selfPlay.Limits.TimeMs <= 0:
		return nil, fmt.Errorf("--time-ms must be positive, got %v", d.selfPlay.Limits.TimeMs)
	case d.selfPlay.Limits.Inc < 0:
		return nil, fmt.Errorf("--inc must not be negative, got %v", d.selfPlay.Limits.Inc)
	case d.buffer < 1:
		return nil, fmt.Errorf("--buffer must be at least 1, got %d", d.buffer)
	}
	return d, nil
}

func datagenAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return configError("%v", err)
	}
	s, err := resolveRunSettings(c, cfg, cfg.Datagen.Workers)
	if err != nil {
		return configError("%v", err)
	}
	d, err := resolveDatagenSettings(c, &cfg.Datagen)
	if err != nil {
		return configError("%v", err)
	}

	backend, location := "csv", d.output
	switch {
	case d.dryRun:
		backend, location = "none", ""
	case s.storage.enabled():
		backend, location = s.storage.Backend, s.storage.location()
	}
	env, err := newRunEnv(c, types.ModeDatagen, s, backend)
	if err != nil {
		return configError("%v", err)
	}

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	pol, err := buildDatagenPolicy(c, s, d, env)
	if err != nil {
		return cli.Exit(fmt.Sprintf("open dataset: %v", err), exitPersistenceFailure)
	}

	stopMetrics, err := serveMetrics(s.metricsAddr, env.collector, env.logger)
	if err != nil {
		_ = pol.Close()
		return configError("%v", err)
	}
	defer stopMetrics()

	env.collector.IncRunStarted()
	env.logger.Info("datagen run starting", map[string]any{
		"workers":     s.workers,
		"games":       d.games,
		"time_ms":     d.selfPlay.Limits.TimeMs,
		"inc":         d.selfPlay.Limits.Inc,
		"score_limit": d.selfPlay.ScoreLimit,
		"max_plies":   d.selfPlay.MaxPlies,
		"storage":     backend,
	})

	result, drainErr := pool.RunDatagen(ctx, pool.DatagenConfig{
		Config:   env.poolConfig(s),
		Games:    d.games,
		SelfPlay: d.selfPlay,
	}, sink.New(sink.NewChannel(d.buffer), pol, env.logger, env.collector))

	st := pol.Stats()
	env.collector.AbsorbPolicyStats(st.TotalRows, st.RowsPersisted, st.RowsDiscarded)

	status, message := datagenOutcome(&result, drainErr)
	if status == types.OutcomeCompleted {
		env.collector.IncRunCompleted()
	} else {
		env.collector.IncRunFailed()
	}

	snap := env.collector.Snapshot()
	event := env.newEvent(status, s.workers)
	event.GamesPlayed = snap.GamesPlayed
	event.RowsPersisted = result.Drain.Persisted
	event.StoragePath = location

	banner := tui.Banner{
		Title:   "sparring datagen",
		Outcome: string(status),
		Fields: []tui.BannerField{
			field("Run ID", env.meta.RunID),
			field("Workers", s.workers),
			field("Games", snap.GamesPlayed),
			field("Capped games", snap.GamesCapped),
			field("Rows kept", snap.RowsKept),
			field("Rows filtered", snap.RowsFiltered),
			field("Rows persisted", result.Drain.Persisted),
			field("Failed workers", len(result.Failures())),
			field("Duration", time.Since(env.started).Round(time.Millisecond)),
		},
	}
	if location != "" {
		banner.Fields = append(banner.Fields, field("Dataset", location))
	}
	return env.finish(c, s.adapter, banner, event, message)
}

// buildDatagenPolicy opens the row sink: nothing for a dry run, the Lode
// dataset when a storage backend is set, the CSV file otherwise.
func buildDatagenPolicy(c *cli.Context, s *runSettings, d *datagenSettings, env *runEnv) (policy.Policy, error) {
	if d.dryRun {
		return policy.NewNoopPolicy(), nil
	}
	var inner policy.Sink
	if s.storage.enabled() {
		client, err := s.storage.client(c.Context, env.meta.RunID, engineName(s.engineA.Path), env.started)
		if err != nil {
			return nil, err
		}
		inner = lode.NewSink(client)
	} else {
		csvSink, err := lode.NewCSVSink(d.output)
		if err != nil {
			return nil, err
		}
		inner = csvSink
	}
	return policy.NewStrictPolicy(lode.NewInstrumentedSink(inner, env.collector)), nil
}

// datagenOutcome classifies a finished datagen run. Losing rows outranks a
// worker failure.
func datagenOutcome(result *pool.DatagenResult, drainErr error) (types.OutcomeStatus, string) {
	if drainErr != nil {
		return types.OutcomePersistenceFailure, fmt.Sprintf("persistence failed: %v", drainErr)
	}
	for _, f := range result.Failures() {
		if errors.Is(f.Err, types.ErrLengthMismatch) {
			return types.OutcomeConfigError, fmt.Sprintf("worker %d: %v", f.Worker, f.Err)
		}
	}
	if f := result.Failures(); len(f) > 0 {
		return types.OutcomeEngineFailure, fmt.Sprintf("worker %d: %v", f[0].Worker, f[0].Err)
	}
	return types.OutcomeCompleted, ""
}
