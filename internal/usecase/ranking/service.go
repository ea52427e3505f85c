package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dsrank/internal/domain"
	"github.com/kailas-cloud/dsrank/internal/metrics"
)

// progressEvery controls how often RankAll logs progress.
const progressEvery = 500

// Service scores and ranks every document of an embedding set for each query.
type Service struct {
	set    *domain.EmbeddingSet
	sims   *Similarities
	logger *zap.Logger
}

// New precomputes the similarity matrices of set.
func New(set *domain.EmbeddingSet, logger *zap.Logger) (*Service, error) {
	start := time.Now()
	sims, err := NewSimilarities(set)
	if err != nil {
		return nil, fmt.Errorf("similarities: %w", err)
	}
	logger.Debug("Similarity matrices computed",
		zap.Int("records", set.Len()),
		zap.Duration("duration", time.Since(start)),
	)
	return &Service{set: set, sims: sims, logger: logger}, nil
}

// Set returns the embedding set the service ranks over.
func (s *Service) Set() *domain.EmbeddingSet { return s.set }

// Score returns the composite score of a query/document pair under policy.
func (s *Service) Score(queryID, docID string, policy WeightPolicy) (float64, error) {
	q, ok := s.set.Index(queryID)
	if !ok {
		return 0, fmt.Errorf("query %q: %w", queryID, domain.ErrUnknownRecord)
	}
	d, ok := s.set.Index(docID)
	if !ok {
		return 0, fmt.Errorf("document %q: %w", docID, domain.ErrUnknownRecord)
	}
	return s.sims.Composite(q, d, policy.WeightsFor(s.set.FeatureAvailable(d))), nil
}

// Rank returns all document ids ordered by descending composite score for queryID.
func (s *Service) Rank(queryID string, policy WeightPolicy) ([]string, error) {
	q, ok := s.set.Index(queryID)
	if !ok {
		return nil, fmt.Errorf("query %q: %w", queryID, domain.ErrUnknownRecord)
	}
	order := s.RankIndices(q, policy, nil, nil)
	return s.ids(order), nil
}

// RankIndices ranks documents for query position q and returns their positions.
// order and scores are reused as scratch space when large enough.
// Equal scores keep document enumeration order.
func (s *Service) RankIndices(q int, policy WeightPolicy, order []int, scores []float64) []int {
	n := s.set.Len()
	if cap(order) < n {
		order = make([]int, n)
	}
	order = order[:n]
	if cap(scores) < n {
		scores = make([]float64, n)
	}
	scores = scores[:n]

	for d := 0; d < n; d++ {
		order[d] = d
		scores[d] = s.sims.Composite(q, d, policy.WeightsFor(s.set.FeatureAvailable(d)))
	}

	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	return order
}

// RankAll ranks every query in enumeration order.
func (s *Service) RankAll(ctx context.Context, policy WeightPolicy) (*domain.Ranking, error) {
	start := time.Now()
	n := s.set.Len()
	out := domain.NewRanking(n)

	order := make([]int, n)
	scores := make([]float64, n)
	for q := 0; q < n; q++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("rank all: %w", err)
		}
		order = s.RankIndices(q, policy, order, scores)
		out.Set(s.set.ID(q), s.ids(order))

		if (q+1)%progressEvery == 0 {
			s.logger.Info("Ranking queries", zap.Int("done", q+1), zap.Int("total", n))
		}
	}

	duration := time.Since(start)
	metrics.RankingDuration.Observe(duration.Seconds())
	s.logger.Info("Ranking complete",
		zap.Int("queries", n),
		zap.Duration("duration", duration),
	)
	return out, nil
}

func (s *Service) ids(order []int) []string {
	out := make([]string, len(order))
	for i, d := range order {
		out[i] = s.set.ID(d)
	}
	return out
}
