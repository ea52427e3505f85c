// Package main implements the dsrank CLI: OpenML scraping and the field-weighted
// retrieval experiment.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dsrank/internal/config"
	logpkg "github.com/kailas-cloud/dsrank/internal/logger"
	"github.com/kailas-cloud/dsrank/internal/metrics"
	chiTransport "github.com/kailas-cloud/dsrank/internal/transport/chi"
	healthuc "github.com/kailas-cloud/dsrank/internal/usecase/health"
	"github.com/kailas-cloud/dsrank/internal/version"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	env        string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "dsrank",
		Short: "Dataset retrieval experiment over OpenML descriptions",
		Long: `dsrank scrapes dataset titles and descriptions from the OpenML registry and
ranks dataset records against each other with per-field adapter embeddings.

Examples:
  # Collect dataset descriptions
  dsrank scrape --output dataset_descriptions.json

  # Embed, rank and tune weights with config/prod.yaml
  dsrank rank --env prod`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default config/<env>.yaml)")
	root.PersistentFlags().StringVar(&opts.env, "env", "", "environment: local, dev, prod (default $ENV or local)")

	root.AddCommand(newScrapeCmd(opts))
	root.AddCommand(newRankCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

// app is the per-command runtime: config, logger and the optional admin server.
type app struct {
	cfg    config.Config
	env    string
	runID  string
	logger *zap.Logger
	admin  *chiTransport.AdminServer
}

func setup(opts *globalOptions, command string) (*app, error) {
	env := opts.env
	if env == "" {
		env = config.GetEnv()
	}

	var (
		cfg config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	base, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger, runID := logpkg.WithRun(base, command)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterExperimentMetrics()
	metrics.RegisterHTTPMetrics()

	logger.Info("Starting dsrank",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
	)
	return &app{cfg: cfg, env: env, runID: runID, logger: logger}, nil
}

// serveAdmin starts /healthz and /metrics when metrics.addr is configured.
func (a *app) serveAdmin(health *healthuc.Service) error {
	if a.cfg.Metrics.Addr == "" {
		return nil
	}
	srv, err := chiTransport.Start(
		a.cfg.Metrics.Addr,
		chiTransport.NewRouter(health, a.cfg.Metrics.APIKeys, a.logger),
		a.logger,
	)
	if err != nil {
		return fmt.Errorf("start admin server: %w", err)
	}
	a.admin = srv
	return nil
}

func (a *app) close() {
	if a.admin != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.admin.Shutdown(ctx); err != nil {
			a.logger.Error("Error during admin shutdown", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// interrupted reports whether err comes from a signal-cancelled run.
func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
