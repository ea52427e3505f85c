package scrape

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dsrank/internal/domain"
	"github.com/kailas-cloud/dsrank/internal/metrics"
)

// Report summarizes one scrape run.
type Report struct {
	Listed    int
	Processed int
	Skipped   int
	Failed    int
}

// Service collects dataset titles and descriptions from the registry.
type Service struct {
	registry Registry
	logger   *zap.Logger
}

// New creates a scrape service.
func New(registry Registry, logger *zap.Logger) *Service {
	return &Service{registry: registry, logger: logger}
}

// Run fetches every listed dataset. Per-dataset failures are logged and counted, never returned.
// Only a failed listing or a cancelled context aborts the run.
func (s *Service) Run(ctx context.Context) ([]domain.Dataset, Report, error) {
	refs, err := s.registry.ListDatasets(ctx)
	if err != nil {
		return nil, Report{}, fmt.Errorf("list datasets: %w", err)
	}

	report := Report{Listed: len(refs)}
	s.logger.Info("Registry listing fetched", zap.Int("datasets", len(refs)))

	out := make([]domain.Dataset, 0, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return out, report, fmt.Errorf("scrape interrupted: %w", err)
		}

		d, err := s.registry.GetDataset(ctx, ref.ID)
		if err != nil {
			if ctx.Err() != nil {
				return out, report, fmt.Errorf("scrape interrupted: %w", ctx.Err())
			}
			report.Failed++
			metrics.ScrapedDatasetsTotal.WithLabelValues("failed").Inc()
			s.logger.Warn("Error fetching dataset", zap.String("id", ref.ID), zap.Error(err))
			continue
		}

		// title comes from the listing, description from the detail document
		if ref.ID == "" || ref.Name == "" || d.Description == "" {
			report.Skipped++
			metrics.ScrapedDatasetsTotal.WithLabelValues("skipped").Inc()
			s.logger.Info("Skipping dataset: missing or invalid data", zap.String("id", ref.ID))
			continue
		}

		out = append(out, domain.Dataset{ID: ref.ID, Title: ref.Name, Description: d.Description})
		report.Processed++
		metrics.ScrapedDatasetsTotal.WithLabelValues("processed").Inc()
		s.logger.Info("Processed dataset", zap.String("id", ref.ID), zap.String("title", ref.Name))
	}

	s.logger.Info("Scrape finished",
		zap.Int("listed", report.Listed),
		zap.Int("processed", report.Processed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return out, report, nil
}
