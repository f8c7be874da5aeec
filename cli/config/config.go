package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/justapithecus/sparring/engine"
)

// Config represents a sparring.yaml file. Every value is optional and acts
// as a default for command flags; flags always win.
type Config struct {
	Engines     EnginesConfig `yaml:"engines"`
	Check       CheckConfig   `yaml:"check"`
	Datagen     DatagenConfig `yaml:"datagen"`
	ReadTimeout Duration      `yaml:"read_timeout"`
	Storage     StorageConfig `yaml:"storage"`
	Adapter     AdapterConfig `yaml:"adapter"`
	MetricsAddr string        `yaml:"metrics_addr"`
	DiagPath    string        `yaml:"diag_path"`
}

// EnginesConfig names the two engine builds and the options sent to both.
type EnginesConfig struct {
	A       EngineConfig      `yaml:"a"`
	B       EngineConfig      `yaml:"b"`
	Options map[string]string `yaml:"options"`
}

// EngineConfig is one engine executable.
type EngineConfig struct {
	Path string   `yaml:"path"`
	Args []string `yaml:"args"`
	Dir  string   `yaml:"dir"`
}

// ExecConfig converts to the engine's spawn configuration.
func (e EngineConfig) ExecConfig() engine.ExecConfig {
	return engine.ExecConfig{Path: e.Path, Args: e.Args, Dir: e.Dir}
}

// CheckConfig holds differential check defaults. Pointers distinguish an
// explicit zero from an omitted key.
type CheckConfig struct {
	Workers   *int `yaml:"workers,omitempty"`
	Games     *int `yaml:"games,omitempty"`
	MaxPlies  *int `yaml:"max_plies,omitempty"`
	BestDepth *int `yaml:"best_depth,omitempty"`
}

// DatagenConfig holds self-play data generation defaults.
type DatagenConfig struct {
	Workers    *int     `yaml:"workers,omitempty"`
	Games      *int     `yaml:"games,omitempty"`
	TimeMs     *float64 `yaml:"time_ms,omitempty"`
	Inc        *float64 `yaml:"inc,omitempty"`
	ScoreLimit *int     `yaml:"score_limit,omitempty"`
	MaxPlies   *int     `yaml:"max_plies,omitempty"`
	Output     string   `yaml:"output"`
	Buffer     *int     `yaml:"buffer,omitempty"`
}

// StorageConfig holds dataset storage defaults.
type StorageConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig holds notification adapter defaults.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	d.Duration = parsed
	return nil
}

// EngineOptions returns the configured options sorted by name, so every
// link receives them in the same order.
func (c *Config) EngineOptions() []engine.OptionSetting {
	if len(c.Engines.Options) == 0 {
		return nil
	}
	names := make([]string, 0, len(c.Engines.Options))
	for name := range c.Engines.Options {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := make([]engine.OptionSetting, 0, len(names))
	for _, name := range names {
		opts = append(opts, engine.OptionSetting{Name: name, Value: c.Engines.Options[name]})
	}
	return opts
}
