// Package cli implements the kstore command tree.
package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/goliatone/go-kstore/internal/config"
	"github.com/goliatone/go-kstore/pkg/activity"
	"github.com/goliatone/go-kstore/pkg/telemetry"
	"github.com/spf13/cobra"
)

// App holds the configuration and lazily opened resources shared by every
// command of one process.
type App struct {
	cfg    config.Config
	logger *slog.Logger
	hooks  activity.Hooks

	stack             *stack
	shutdownTelemetry func(context.Context) error
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger handed to stores, policies and the composite.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithActivityHooks adds hooks that receive knowledge store activity in
// addition to the log hook.
func WithActivityHooks(hooks ...activity.ActivityHook) Option {
	return func(a *App) {
		a.hooks = append(a.hooks, hooks...)
	}
}

// New returns an App for cfg.
func New(cfg config.Config, opts ...Option) *App {
	a := &App{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Close releases the store and flushes telemetry.
func (a *App) Close() error {
	var errs []error
	if a.stack != nil {
		errs = append(errs, a.stack.close())
		a.stack = nil
	}
	if a.shutdownTelemetry != nil {
		errs = append(errs, a.shutdownTelemetry(context.Background()))
		a.shutdownTelemetry = nil
	}
	return errors.Join(errs...)
}

// Command builds the root command. Persistent flags override the
// environment configuration.
func (a *App) Command() *cobra.Command {
	root := &cobra.Command{
		Use:           "kstore",
		Short:         "Diff, merge and manage layered knowledge stores",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.setupTelemetry(cmd.Context(), cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfg.DataDir, "data-dir", a.cfg.DataDir, "directory of the persistent store")
	flags.BoolVar(&a.cfg.InMemory, "in-memory", a.cfg.InMemory, "keep the store in memory for this process only")
	flags.StringSliceVar(&a.cfg.SharedStores, "shared", a.cfg.SharedStores, "read-only shared snapshot file, strongest first (repeatable)")
	flags.StringVar(&a.cfg.ReviewBaseURL, "review-base-url", a.cfg.ReviewBaseURL, "base of the review links returned by mutations")
	flags.StringVar(&a.cfg.PolicyEngine, "engine", a.cfg.PolicyEngine, "policy engine: expr, cel or js")
	flags.StringVar(&a.cfg.PolicyFile, "policy", a.cfg.PolicyFile, "YAML rules applied to store mutations")
	flags.StringVar(&a.cfg.TraceExporter, "trace-exporter", a.cfg.TraceExporter, "trace exporter: none or stdout")
	flags.StringVar(&a.cfg.MetricExporter, "metric-exporter", a.cfg.MetricExporter, "metric exporter: none or stdout")

	root.AddCommand(
		a.diffCommand(),
		a.applyCommand(),
		a.mergeCommand(),
		a.checkCommand(),
		a.storeCommand(),
	)
	return root
}

func (a *App) setupTelemetry(ctx context.Context, cmd *cobra.Command) error {
	if a.shutdownTelemetry != nil {
		return nil
	}
	shutdown, err := telemetry.Setup(ctx, telemetry.SetupConfig{
		ServiceName:    "kstore",
		TraceExporter:  a.cfg.TraceExporter,
		MetricExporter: a.cfg.MetricExporter,
		Writer:         cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	a.shutdownTelemetry = shutdown
	return nil
}
