package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/sparring/cli/render"
	"github.com/justapithecus/sparring/cli/tui"
	"github.com/justapithecus/sparring/diag"
)

// InspectCommand returns the inspect command, which reads a divergence
// archive written by check.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the divergences recorded in a diagnostic archive",
		ArgsUsage: "<archive>",
		Flags: append(ReadOnlyFlags(),
			&cli.IntFlag{
				Name:  "tail",
				Usage: "Trailing commands shown per link in table output (0 = all)",
				Value: diag.DefaultTail,
			},
			&cli.StringFlag{
				Name:  "run-id",
				Usage: "Only show entries of this run",
			},
		),
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("archive path required", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	res, err := diag.ReadFile(c.Args().First(), nil)
	if err != nil {
		return err
	}
	if res.Skipped > 0 {
		fmt.Fprintf(c.App.ErrWriter, "warning: skipped %d undecodable frame(s)\n", res.Skipped)
	}

	entries := res.Entries
	if runID := c.String("run-id"); runID != "" {
		filtered := make([]*diag.Entry, 0, len(entries))
		for _, e := range entries {
			if e.RunID == runID {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectDivergences, entries)
	}
	if r.Format() != render.FormatTable {
		return r.Render(entries)
	}

	// A reflected table cannot show vectors or command logs; print reports.
	out := c.App.Writer
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "(no results)")
		return err
	}
	for i, e := range entries {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "[%d] run %s at %s\n", i, e.RunID, e.Ts)
		if err := diag.FormatEntry(out, e, c.Int("tail")); err != nil {
			return err
		}
	}
	return nil
}
