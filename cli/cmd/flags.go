// Package cmd provides the commands of the sparring binary.
package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/sparring/adapter/redis"
	"github.com/justapithecus/sparring/adapter/webhook"
	"github.com/justapithecus/sparring/lode"
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for inspect and stats.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, stats only)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// outputFlags are the rendering flags of check and datagen.
func outputFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress the summary banner",
		},
	}
}

// engineFlags configure the engines, the worker count and the run identity.
// Values set here override sparring.yaml.
func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to a sparring.yaml config file",
		},
		&cli.StringFlag{
			Name:  "run-id",
			Usage: "Run ID (default: a random UUID)",
		},
		&cli.StringFlag{
			Name:    "engine-a",
			Aliases: []string{"a"},
			Usage:   "Path to the reference engine binary",
		},
		&cli.StringFlag{
			Name:    "engine-b",
			Aliases: []string{"b"},
			Usage:   "Path to the candidate engine binary (default: engine-a)",
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "Number of concurrent workers",
			Value:   1,
		},
		&cli.StringSliceFlag{
			Name:  "option",
			Usage: "Engine option sent to every link as name=value (repeatable)",
		},
		&cli.DurationFlag{
			Name:  "read-timeout",
			Usage: "Fail any engine read that takes longer than this (0 = unbounded)",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "Serve Prometheus metrics on this address while the run is active",
		},
	}
}

// storageFlags select where dataset rows and archives are persisted.
func storageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "storage-backend",
			Usage: "Lode storage backend: fs or s3 (unset = no dataset storage)",
		},
		&cli.StringFlag{
			Name:  "storage-path",
			Usage: "Storage path (fs: directory, s3: bucket/prefix)",
		},
		&cli.StringFlag{
			Name:  "storage-dataset",
			Usage: "Lode dataset ID",
			Value: lode.DefaultDataset,
		},
		&cli.StringFlag{
			Name:  "storage-region",
			Usage: "AWS region for the s3 backend (default: the SDK chain)",
		},
		&cli.StringFlag{
			Name:  "storage-endpoint",
			Usage: "Custom S3 endpoint for S3-compatible providers",
		},
		&cli.BoolFlag{
			Name:  "storage-s3-path-style",
			Usage: "Force path-style S3 addressing",
		},
	}
}

// adapterFlags configure the run-completed notification.
func adapterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Notification adapter: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Webhook endpoint or redis:// URL",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis pub/sub channel",
			Value: redis.DefaultChannel,
		},
		&cli.StringSliceFlag{
			Name:  "adapter-header",
			Usage: "Webhook header as Key=Value (repeatable)",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-attempt publish timeout (default: per adapter)",
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Publish retries after the first attempt",
			Value: webhook.DefaultRetries,
		},
	}
}

func concatFlags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
