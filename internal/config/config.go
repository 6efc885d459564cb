// Package config loads kstore command settings from the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is the environment-backed configuration of the kstore command.
// Flags override individual fields after Load.
type Config struct {
	LogLevel       string   `env:"KSTORE_LOG_LEVEL" envDefault:"info"`
	LogFormat      string   `env:"KSTORE_LOG_FORMAT" envDefault:"text"`
	DataDir        string   `env:"KSTORE_DATA_DIR" envDefault:".kstore"`
	InMemory       bool     `env:"KSTORE_IN_MEMORY" envDefault:"false"`
	ReviewBaseURL  string   `env:"KSTORE_REVIEW_BASE_URL" envDefault:"kstore://local"`
	SharedStores   []string `env:"KSTORE_SHARED_STORES" envSeparator:","`
	PolicyEngine   string   `env:"KSTORE_POLICY_ENGINE" envDefault:"expr"`
	PolicyFile     string   `env:"KSTORE_POLICY_FILE"`
	TraceExporter  string   `env:"KSTORE_TRACE_EXPORTER" envDefault:"none"`
	MetricExporter string   `env:"KSTORE_METRIC_EXPORTER" envDefault:"none"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the enumerated settings.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("config: unsupported log format %q", c.LogFormat)
	}
	if !c.InMemory && c.DataDir == "" {
		return fmt.Errorf("config: KSTORE_DATA_DIR is required unless KSTORE_IN_MEMORY is set")
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return 0, fmt.Errorf("config: unsupported log level %q", name)
	}
	return level, nil
}

// NewLogger builds the process logger writing to w.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
