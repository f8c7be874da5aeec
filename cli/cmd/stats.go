package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/sparring/cli/config"
	"github.com/justapithecus/sparring/cli/render"
	"github.com/justapithecus/sparring/cli/tui"
	"github.com/justapithecus/sparring/lode"
)

// statsTimeout bounds a dataset scan.
const statsTimeout = 60 * time.Second

// StatsCommand returns the stats command. It summarizes a CSV dataset file,
// or a Lode dataset when --storage-backend is set.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Summarize a generated dataset (rows, columns, label distribution)",
		ArgsUsage: "[csv-file]",
		Flags: concatFlags(ReadOnlyFlags(), storageFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:  "run-id",
				Usage: "Only count rows of this run (Lode datasets)",
			},
		}),
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	summary, err := summarize(c)
	if err != nil {
		if errors.Is(err, lode.ErrNoRowsFound) {
			return cli.Exit(err.Error(), 1)
		}
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatsDataset, summary)
	}
	return r.Render(summary)
}

func summarize(c *cli.Context) (*lode.Summary, error) {
	storage := resolveStorage(c, config.StorageConfig{})
	if !storage.enabled() {
		path := c.Args().First()
		if path == "" {
			path = lode.DefaultCSVPath
		}
		return lode.SummarizeCSVFile(path)
	}
	if c.NArg() > 0 {
		return nil, fmt.Errorf("a csv file argument cannot be combined with --storage-backend")
	}
	if storage.Path == "" && storage.Backend != lode.BackendMemory {
		return nil, fmt.Errorf("--storage-path is required for the %s backend", storage.Backend)
	}

	ctx, cancel := context.WithTimeout(c.Context, statsTimeout)
	defer cancel()

	factory, err := lode.NewFactory(ctx, storage.StorageConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage reader: %w", err)
	}
	ds, err := lode.NewDataset(storage.dataset, factory)
	if err != nil {
		return nil, err
	}
	return lode.SummarizeDataset(ctx, ds, c.String("run-id"))
}
