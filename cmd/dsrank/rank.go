package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dsrank/internal/config"
	"github.com/kailas-cloud/dsrank/internal/db"
	"github.com/kailas-cloud/dsrank/internal/domain"
	"github.com/kailas-cloud/dsrank/internal/repository/records"
	"github.com/kailas-cloud/dsrank/internal/usecase/encode"
	healthuc "github.com/kailas-cloud/dsrank/internal/usecase/health"
	"github.com/kailas-cloud/dsrank/internal/usecase/ranking"
	"github.com/kailas-cloud/dsrank/internal/usecase/tuning"
)

func newRankCmd(opts *globalOptions) *cobra.Command {
	var (
		input    string
		output   string
		skipTune bool
	)
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Embed records, rank every query and tune the field weights",
		Long: `Rank embeds every record with the title, details and feature_summary adapters,
ranks all records against every query with the composite field score and writes
the ranking. Unless --skip-tune is set it then hill-climbs the field weights
against self-retrieval top-k accuracy and prints the best weights.

Examples:
  # Full run with config/local.yaml
  dsrank rank

  # Ranking only, custom paths
  dsrank rank --input data/final_valid.json --output rankings.json --skip-tune`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(opts, "rank")
			if err != nil {
				return err
			}
			defer a.close()

			if input != "" {
				a.cfg.Ranking.Input = input
			}
			if output != "" {
				a.cfg.Ranking.Output = output
			}

			ctx := cmd.Context()
			store, err := openCacheStore(ctx, a.cfg.Cache, a.logger)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			return a.runRank(ctx, store, newOpenAIEmbedder, skipTune, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "records file (default ranking.input)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "ranking output file (default ranking.output)")
	cmd.Flags().BoolVar(&skipTune, "skip-tune", false, "write the ranking without tuning the weights")
	return cmd
}

// runRank is the rank pipeline after config and cache setup: load -> embed -> rank -> save -> tune.
func (a *app) runRank(
	ctx context.Context,
	store db.Store,
	newBase newEmbedderFunc,
	skipTune bool,
	out io.Writer,
) error {
	recs, err := records.LoadRecords(a.cfg.Ranking.Input)
	if err != nil {
		return err
	}
	a.logger.Info("Records loaded",
		zap.String("path", a.cfg.Ranking.Input),
		zap.Int("records", len(recs)),
	)

	// Pass nil interface (not a typed nil) when the cache is disabled.
	var kv db.KVStore
	var pinger healthuc.DBPinger
	if store != nil {
		kv = store
		pinger = store
	}
	adapters, checks := buildAdapters(a.cfg, kv, newBase, a.logger)
	if err := a.serveAdmin(healthuc.New(pinger, checks)); err != nil {
		return err
	}

	enc, err := encode.New(adapters, a.logger)
	if err != nil {
		return err
	}
	embedCtx, usage := domain.NewContextWithUsage(ctx)
	set, err := enc.WithBatchSize(a.cfg.Embedding.BatchSize).
		WithProgressEvery(a.cfg.Embedding.ProgressEvery).
		Build(embedCtx, recs)
	if err != nil {
		return fmt.Errorf("build embeddings: %w", err)
	}
	a.logger.Info("Embedding usage",
		zap.Int("provider_calls", usage.Calls()),
		zap.Int("total_tokens", usage.TotalTokens()),
	)

	ranker, err := ranking.New(set, a.logger)
	if err != nil {
		return err
	}
	policy := ranking.RegimePolicy{
		Default:     *a.cfg.Ranking.Default,
		Unavailable: *a.cfg.Ranking.Unavailable,
	}
	result, err := ranker.RankAll(ctx, policy)
	if err != nil {
		return err
	}
	if err := records.SaveRanking(a.cfg.Ranking.Output, result); err != nil {
		return fmt.Errorf("save ranking: %w", err)
	}
	fmt.Fprintf(out, "Ranking complete. Rankings have been saved to '%s'.\n", a.cfg.Ranking.Output)

	if skipTune {
		return nil
	}

	opt, err := tuning.New(ranker, set.Len(), tuningConfig(a.cfg), a.logger)
	if err != nil {
		return err
	}
	opt.OnStart = func(s tuning.Step) {
		fmt.Fprintln(out, "Initial weights:", s.Weights, "Metric:", s.Accuracy)
	}
	opt.OnImprove = func(s tuning.Step) {
		fmt.Fprintf(out, "Iteration %d: Improved weights to %v with metric %.4f\n", s.Iteration, s.Weights, s.Accuracy)
	}
	res, err := opt.HillClimb(ctx)
	if err != nil {
		return err
	}
	if res.Converged {
		fmt.Fprintf(out, "No improvement in iteration %d; terminating hill climbing.\n", res.Iterations)
	}
	fmt.Fprintln(out, "Best weights found:", res.Best)
	fmt.Fprintf(out, "Top-%d accuracy (proportion of queries with relevant doc in top %d): %v\n",
		a.cfg.Tuning.TopK, a.cfg.Tuning.TopK, res.Accuracy)
	return nil
}

func tuningConfig(cfg config.Config) tuning.Config {
	return tuning.Config{
		Initial:            *cfg.Tuning.Initial,
		StepSize:           cfg.Tuning.StepSize,
		MaxIters:           cfg.Tuning.MaxIters,
		TopK:               cfg.Tuning.TopK,
		RespectUnavailable: cfg.Tuning.RespectUnavailableOverride,
		Unavailable:        *cfg.Ranking.Unavailable,
	}
}
