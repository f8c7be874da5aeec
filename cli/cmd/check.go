package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/justapithecus/sparring/cli/tui"
	"github.com/justapithecus/sparring/diag"
	"github.com/justapithecus/sparring/divergence"
	"github.com/justapithecus/sparring/iox"
	"github.com/justapithecus/sparring/lode"
	"github.com/justapithecus/sparring/log"
	"github.com/justapithecus/sparring/pool"
	"github.com/justapithecus/sparring/types"
)

// archiveFilename is the sidecar name of an uploaded divergence archive.
const archiveFilename = "divergences.msgpack"

// CheckCommand returns the check command: a differential run comparing the
// evaluation features of two engine builds on every reachable position.
func CheckCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Compare the evaluation features of two engine builds",
		Description: "Every worker plays randomized games, then one best-move game, asking both\n" +
			"engines for their feature vectors after every ply. Exit codes: 0 pass,\n" +
			"1 divergence, 2 engine failure, 3 configuration error.",
		Flags: concatFlags(engineFlags(), []cli.Flag{
			&cli.IntFlag{
				Name:    "games",
				Aliases: []string{"n"},
				Usage:   "Randomized games per worker",
				Value:   divergence.DefaultPlan().RandomGames,
			},
			&cli.IntFlag{
				Name:  "max-plies",
				Usage: "Ply cap for every game",
				Value: divergence.DefaultPlan().MaxPlies,
			},
			&cli.IntFlag{
				Name:  "best-depth",
				Usage: "Search depth of the best-move game",
				Value: divergence.DefaultPlan().BestDepth,
			},
			&cli.StringFlag{
				Name:  "diag-path",
				Usage: "Append divergence reports to this msgpack archive",
			},
		}, storageFlags(), adapterFlags(), outputFlags()),
		Action: checkAction,
	}
}

func checkAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return configError("%v", err)
	}
	s, err := resolveRunSettings(c, cfg, cfg.Check.Workers)
	if err != nil {
		return configError("%v", err)
	}
	plan := divergence.Plan{
		RandomGames: intSetting(c, "games", cfg.Check.Games),
		MaxPlies:    intSetting(c, "max-plies", cfg.Check.MaxPlies),
		BestDepth:   intSetting(c, "best-depth", cfg.Check.BestDepth),
	}
	if err := plan.Validate(); err != nil {
		return configError("invalid check plan: %v", err)
	}

	backend := "none"
	if s.storage.enabled() {
		backend = s.storage.Backend
	}
	env, err := newRunEnv(c, types.ModeCheck, s, backend)
	if err != nil {
		return configError("%v", err)
	}

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	stopMetrics, err := serveMetrics(s.metricsAddr, env.collector, env.logger)
	if err != nil {
		return configError("%v", err)
	}
	defer stopMetrics()

	rec, err := newDivergenceRecorder(s, env)
	if err != nil {
		return configError("%v", err)
	}

	env.collector.IncRunStarted()
	env.logger.Info("check run starting", map[string]any{
		"workers":    s.workers,
		"games":      plan.RandomGames,
		"max_plies":  plan.MaxPlies,
		"best_depth": plan.BestDepth,
		"engine_a":   s.engineA.Path,
		"engine_b":   s.engineB.Path,
	})

	agg, runErr := pool.RunCheck(ctx, pool.CheckConfig{
		Config:       env.poolConfig(s),
		Plan:         plan,
		OnDivergence: rec.record,
	})
	status, message := checkOutcome(&agg, runErr)

	archivePath, archiveErr := rec.finish(ctx, s, env)
	if archiveErr != nil {
		env.logger.Error("divergence archive failed", map[string]any{"error": archiveErr.Error()})
	}

	if status == types.OutcomePass {
		env.collector.IncRunCompleted()
	} else {
		env.collector.IncRunFailed()
	}

	snap := env.collector.Snapshot()
	event := env.newEvent(status, s.workers)
	event.GamesPlayed = snap.GamesPlayed
	event.PliesChecked = snap.PliesChecked
	event.Divergences = snap.Divergences
	event.StoragePath = archivePath

	banner := tui.Banner{
		Title:   "sparring check",
		Outcome: string(status),
		Fields: []tui.BannerField{
			field("Run ID", env.meta.RunID),
			field("Workers", s.workers),
			field("Games", snap.GamesPlayed),
			field("Plies checked", snap.PliesChecked),
			field("Divergences", snap.Divergences),
			field("Failed workers", len(agg.Failures())),
			field("Duration", time.Since(env.started).Round(time.Millisecond)),
		},
	}
	if archivePath != "" {
		banner.Fields = append(banner.Fields, field("Archive", archivePath))
	}
	return env.finish(c, s.adapter, banner, event, message)
}

// checkOutcome classifies a finished check run. A length mismatch means the
// engines are not comparable at all, so it outranks any divergence.
func checkOutcome(agg *types.AggregateResult, runErr error) (types.OutcomeStatus, string) {
	switch {
	case errors.Is(runErr, divergence.ErrLengthMismatch):
		return types.OutcomeConfigError, fmt.Sprintf("engines are not comparable: %v", runErr)
	case runErr != nil:
		return types.OutcomeEngineFailure, runErr.Error()
	}
	if d := agg.Divergences(); len(d) > 0 {
		return types.OutcomeDivergence, fmt.Sprintf("FAIL: %d worker(s) found diverging features", len(d))
	}
	if f := agg.Failures(); len(f) > 0 {
		return types.OutcomeEngineFailure, fmt.Sprintf("FAIL: worker %d: %v", f[0].Worker, f[0].Err)
	}
	return types.OutcomePass, ""
}

// divergenceRecorder prints each divergence and appends it to the archive.
// Workers call record concurrently.
type divergenceRecorder struct {
	runID  string
	stderr io.Writer
	logger *log.Logger

	mu      sync.Mutex
	writer  *diag.Writer
	file    string
	buf     *bytes.Buffer
	written int
}

// newDivergenceRecorder opens --diag-path if set. With storage enabled and
// no path, entries are kept in memory for the upload.
func newDivergenceRecorder(s *runSettings, env *runEnv) (*divergenceRecorder, error) {
	r := &divergenceRecorder{runID: env.meta.RunID, stderr: env.stderr, logger: env.logger}
	switch {
	case s.diagPath != "":
		w, err := diag.Create(s.diagPath, env.collector)
		if err != nil {
			return nil, err
		}
		r.writer, r.file = w, s.diagPath
	case s.storage.enabled():
		r.buf = &bytes.Buffer{}
		r.writer = diag.NewWriter(r.buf, env.collector)
	}
	return r, nil
}

func (r *divergenceRecorder) record(report *types.DivergenceReport, commandsA, commandsB []string) {
	entry := diag.NewEntry(r.runID, report, commandsA, commandsB, time.Now())

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := diag.FormatEntry(r.stderr, entry, diag.DefaultTail); err != nil {
		r.logger.Warn("divergence report write failed", map[string]any{"error": err.Error()})
	}
	if r.writer == nil {
		return
	}
	if err := r.writer.Append(entry); err != nil {
		fmt.Fprintf(r.stderr, "warning: archive append failed: %v\n", err)
		return
	}
	r.written++
}

// finish closes the archive and uploads it when storage is enabled and at
// least one divergence was recorded. It returns where the archive ended up.
func (r *divergenceRecorder) finish(ctx context.Context, s *runSettings, env *runEnv) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writer == nil {
		return "", nil
	}
	var err error
	if r.file != "" {
		err = r.writer.Close()
	}
	location := r.file
	if r.written == 0 || !s.storage.enabled() {
		return location, err
	}

	var data []byte
	if r.buf != nil {
		data = r.buf.Bytes()
	} else {
		var readErr error
		if data, readErr = os.ReadFile(r.file); readErr != nil {
			return location, multierr.Append(err, readErr)
		}
	}
	client, clientErr := s.storage.client(ctx, env.meta.RunID, engineName(s.engineB.Path), env.started)
	if clientErr != nil {
		return location, multierr.Append(err, clientErr)
	}
	defer iox.DiscardClose(client)
	if putErr := uploadArchive(context.WithoutCancel(ctx), client, data); putErr != nil {
		return location, multierr.Append(err, putErr)
	}
	env.logger.Info("divergence archive uploaded", map[string]any{
		"storage": s.storage.location(),
		"entries": r.written,
	})
	return s.storage.location() + "/" + archiveFilename, err
}

func uploadArchive(ctx context.Context, w lode.FileWriter, data []byte) error {
	if len(data) == 0 {
		return errors.New("empty divergence archive")
	}
	return w.PutFile(ctx, archiveFilename, "application/msgpack", data)
}
