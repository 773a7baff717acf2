package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/johnwards/pipemon/internal/app"
	"github.com/johnwards/pipemon/internal/config"
	"github.com/johnwards/pipemon/internal/telemetry"
)

type cli struct {
	configPath string
	cfg        *config.Config
	tracing    func(context.Context) error
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pipemon",
		Short: "Monitor sales pipeline health and CRM data integrity",
		Long: `pipemon joins CRM opportunities with customer health scores and product
usage, flags stalled deals, validates opportunities against BANT stage gates
and alerts on what needs attention. Without a subcommand it serves the API.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		RunE:              c.serve,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file (default $"+config.FileEnv+")")

	root.AddCommand(
		c.serveCmd(),
		c.pipelineCmd(),
		c.integrityCmd(),
		c.connectorsCmd(),
		c.opportunitiesCmd(),
		c.seedHealthCmd(),
		c.populateUsageCmd(),
		c.setHealthCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	shutdown, err := telemetry.InitTracing(cmd.Context(), cfg.TraceExporter)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	c.tracing = shutdown
	return nil
}

func (c *cli) shutdown() {
	if c.tracing == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.tracing(ctx); err != nil {
		slog.Warn("flush traces", "error", err)
	}
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// newApp builds the monitor. The caller must close it.
func (c *cli) newApp(ctx context.Context, opts ...app.Option) (*app.App, error) {
	a, err := app.New(ctx, c.cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("start monitor: %w", err)
	}
	return a, nil
}
