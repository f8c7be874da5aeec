package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/sparring/cli/config"
	"github.com/justapithecus/sparring/engine"
	"github.com/justapithecus/sparring/lode"
)

// runSettings is the merged view of sparring.yaml and the flags shared by
// check and datagen. Flags always win over the file.
type runSettings struct {
	runID       string
	engineA     engine.ExecConfig
	engineB     engine.ExecConfig
	options     []engine.OptionSetting
	workers     int
	readTimeout time.Duration
	metricsAddr string
	storage     storageSettings
	adapter     adapterSettings
	diagPath    string
}

type storageSettings struct {
	dataset string
	lode.StorageConfig
}

// enabled reports whether a Lode backend was selected.
func (s storageSettings) enabled() bool {
	return s.Backend != ""
}

type adapterSettings struct {
	kind    string
	url     string
	channel string
	headers map[string]string
	timeout time.Duration
	retries int
}

// loadConfig reads --config, or returns an empty config when unset.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

func stringSetting(c *cli.Context, name, fromFile string) string {
	if !c.IsSet(name) && fromFile != "" {
		return fromFile
	}
	return c.String(name)
}

func intSetting(c *cli.Context, name string, fromFile *int) int {
	if !c.IsSet(name) && fromFile != nil {
		return *fromFile
	}
	return c.Int(name)
}

func floatSetting(c *cli.Context, name string, fromFile *float64) float64 {
	if !c.IsSet(name) && fromFile != nil {
		return *fromFile
	}
	return c.Float64(name)
}

func durationSetting(c *cli.Context, name string, fromFile config.Duration) time.Duration {
	if !c.IsSet(name) && fromFile.Duration > 0 {
		return fromFile.Duration
	}
	return c.Duration(name)
}

// resolveRunSettings merges the shared flags over cfg. workersFromFile is
// the mode-specific workers key.
func resolveRunSettings(c *cli.Context, cfg *config.Config, workersFromFile *int) (*runSettings, error) {
	s := &runSettings{
		runID:       c.String("run-id"),
		workers:     intSetting(c, "workers", workersFromFile),
		readTimeout: durationSetting(c, "read-timeout", cfg.ReadTimeout),
		metricsAddr: stringSetting(c, "metrics-addr", cfg.MetricsAddr),
		diagPath:    stringSetting(c, "diag-path", cfg.DiagPath),
	}
	if s.runID == "" {
		s.runID = uuid.NewString()
	}
	if s.workers < 1 {
		return nil, fmt.Errorf("--workers must be at least 1, got %d", s.workers)
	}
	if s.readTimeout < 0 {
		return nil, fmt.Errorf("--read-timeout must not be negative, got %s", s.readTimeout)
	}

	s.engineA = cfg.Engines.A.ExecConfig()
	if c.IsSet("engine-a") {
		s.engineA = engine.ExecConfig{Path: c.String("engine-a")}
	}
	if s.engineA.Path == "" {
		return nil, errors.New("an engine is required: set --engine-a or engines.a.path")
	}
	s.engineB = cfg.Engines.B.ExecConfig()
	if c.IsSet("engine-b") {
		s.engineB = engine.ExecConfig{Path: c.String("engine-b")}
	}
	if s.engineB.Path == "" {
		s.engineB = s.engineA
	}

	opts, err := mergeOptions(cfg.EngineOptions(), c.StringSlice("option"))
	if err != nil {
		return nil, err
	}
	s.options = opts

	s.storage = resolveStorage(c, cfg.Storage)
	if s.adapter, err = resolveAdapter(c, cfg.Adapter); err != nil {
		return nil, err
	}
	return s, nil
}

// mergeOptions applies name=value flags over the file's options. A flag
// naming an option already in the file replaces its value in place.
func mergeOptions(fromFile []engine.OptionSetting, flags []string) ([]engine.OptionSetting, error) {
	out := append([]engine.OptionSetting(nil), fromFile...)
	for _, raw := range flags {
		opt, err := engine.ParseOptionSetting(raw)
		if err != nil {
			return nil, fmt.Errorf("--option: %w", err)
		}
		replaced := false
		for i := range out {
			if out[i].Name == opt.Name {
				out[i].Value = opt.Value
				replaced = true
			}
		}
		if !replaced {
			out = append(out, opt)
		}
	}
	return out, nil
}

func resolveStorage(c *cli.Context, fromFile config.StorageConfig) storageSettings {
	s := storageSettings{
		dataset: stringSetting(c, "storage-dataset", fromFile.Dataset),
		StorageConfig: lode.StorageConfig{
			Backend:     stringSetting(c, "storage-backend", fromFile.Backend),
			Path:        stringSetting(c, "storage-path", fromFile.Path),
			Region:      stringSetting(c, "storage-region", fromFile.Region),
			Endpoint:    stringSetting(c, "storage-endpoint", fromFile.Endpoint),
			S3PathStyle: c.Bool("storage-s3-path-style") || fromFile.S3PathStyle,
		},
	}
	if s.dataset == "" {
		s.dataset = lode.DefaultDataset
	}
	return s
}

func resolveAdapter(c *cli.Context, fromFile config.AdapterConfig) (adapterSettings, error) {
	a := adapterSettings{
		kind:    stringSetting(c, "adapter", fromFile.Type),
		url:     stringSetting(c, "adapter-url", fromFile.URL),
		channel: stringSetting(c, "adapter-channel", fromFile.Channel),
		timeout: durationSetting(c, "adapter-timeout", fromFile.Timeout),
		retries: intSetting(c, "adapter-retries", fromFile.Retries),
		headers: map[string]string{},
	}
	for k, v := range fromFile.Headers {
		a.headers[k] = v
	}
	for _, raw := range c.StringSlice("adapter-header") {
		k, v, ok := strings.Cut(raw, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return adapterSettings{}, fmt.Errorf("--adapter-header: want Key=Value, got %q", raw)
		}
		a.headers[strings.TrimSpace(k)] = v
	}

	switch a.kind {
	case "":
		return a, nil
	case adapterWebhook, adapterRedis:
	default:
		return adapterSettings{}, fmt.Errorf("unknown adapter %q (must be webhook or redis)", a.kind)
	}
	if a.url == "" {
		return adapterSettings{}, fmt.Errorf("--adapter-url is required for the %s adapter", a.kind)
	}
	if a.retries < 0 {
		return adapterSettings{}, fmt.Errorf("--adapter-retries must be >= 0, got %d", a.retries)
	}
	return a, nil
}

// engineName is the partition value derived from an engine path.
func engineName(path string) string {
	name := filepath.Base(path)
	if name == "." || name == string(filepath.Separator) {
		return "engine"
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// client opens the Lode dataset partition for one run.
func (s storageSettings) client(ctx context.Context, runID, engine string, started time.Time) (*lode.LodeClient, error) {
	factory, err := lode.NewFactory(ctx, s.StorageConfig)
	if err != nil {
		return nil, err
	}
	return lode.NewLodeClientWithFactory(lode.Config{
		Dataset: s.dataset,
		Engine:  engine,
		Day:     lode.DeriveDay(started),
		RunID:   runID,
	}, factory)
}

// location describes where the dataset lives, for banners and events.
func (s storageSettings) location() string {
	return fmt.Sprintf("%s:%s/%s", s.Backend, s.Path, s.dataset)
}
