package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dsrank/internal/config"
	"github.com/kailas-cloud/dsrank/internal/repository/records"
	"github.com/kailas-cloud/dsrank/internal/transport/openml"
	healthuc "github.com/kailas-cloud/dsrank/internal/usecase/health"
	"github.com/kailas-cloud/dsrank/internal/usecase/scrape"
)

func newScrapeCmd(opts *globalOptions) *cobra.Command {
	var (
		output string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Collect dataset titles and descriptions from OpenML",
		Long: `Scrape lists every dataset of the OpenML registry, fetches each description
and writes [{id, title, description}] to the output file. Datasets without a
title or description are skipped, fetch failures are logged and skipped.

Examples:
  # Scrape the whole registry
  dsrank scrape

  # First 100 datasets into a custom file
  dsrank scrape --limit 100 --output sample.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(opts, "scrape")
			if err != nil {
				return err
			}
			defer a.close()

			if output != "" {
				a.cfg.Registry.Output = output
			}
			if limit > 0 {
				a.cfg.Registry.MaxDatasets = limit
			}

			client := newRegistryClient(a.cfg.Registry, a.logger)
			if err := a.serveAdmin(healthuc.New(nil, nil).WithUpstream("registry", client)); err != nil {
				return err
			}

			datasets, report, runErr := scrape.New(client, a.logger).Run(cmd.Context())
			if runErr != nil && !interrupted(runErr) {
				return runErr
			}

			// an interrupted run still keeps what it collected
			if err := records.SaveDatasets(a.cfg.Registry.Output, datasets); err != nil {
				return fmt.Errorf("save datasets: %w", err)
			}
			a.logger.Info("Datasets saved",
				zap.String("path", a.cfg.Registry.Output),
				zap.Int("processed", report.Processed),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d datasets to %s\n", len(datasets), a.cfg.Registry.Output)
			return runErr
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default registry.output)")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many listed datasets (default registry.max_datasets)")
	return cmd
}

func newRegistryClient(cfg config.RegistryConfig, logger *zap.Logger) *openml.Client {
	return openml.NewClient(&openml.Config{
		BaseURL:             cfg.BaseURL,
		APIKey:              cfg.APIKey,
		PageSize:            cfg.PageSize,
		MaxDatasets:         cfg.MaxDatasets,
		RequestsPerSecond:   cfg.RequestsPerSecond,
		Burst:               cfg.Burst,
		Timeout:             cfg.Timeout(),
		BreakerFailureRatio: cfg.Breaker.FailureRatio,
		BreakerMinRequests:  cfg.Breaker.MinRequests,
		BreakerCooldown:     cfg.Breaker.Cooldown(),
		Logger:              logger,
	})
}
