package tuning

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dsrank/internal/domain"
	"github.com/kailas-cloud/dsrank/internal/metrics"
	"github.com/kailas-cloud/dsrank/internal/usecase/ranking"
)

// Defaults of the coordinate hill-climb.
const (
	DefaultStepSize = 0.05
	DefaultMaxIters = 100
	DefaultTopK     = 10
)

// ErrInvalidConfig signals optimizer settings the hill-climb cannot run with.
var ErrInvalidConfig = errors.New("invalid tuning config")

// Config controls the optimizer.
type Config struct {
	Initial  domain.Weights
	StepSize float64
	MaxIters int
	TopK     int
	// RespectUnavailable scores documents without a feature summary with the
	// unavailable weights during evaluation, as the persisted ranking does.
	// Off by default: every pair is scored with the candidate weights.
	RespectUnavailable bool
	Unavailable        domain.Weights
}

// DefaultConfig returns the optimizer settings of the experiment.
func DefaultConfig() Config {
	return Config{
		Initial:     domain.DefaultWeights,
		StepSize:    DefaultStepSize,
		MaxIters:    DefaultMaxIters,
		TopK:        DefaultTopK,
		Unavailable: domain.UnavailableWeights,
	}
}

// Step is one accepted improvement of the hill-climb.
type Step struct {
	Iteration int
	Weights   domain.Weights
	Accuracy  float64
}

// Result is the outcome of HillClimb.
type Result struct {
	Initial         domain.Weights
	InitialAccuracy float64
	Best            domain.Weights
	Accuracy        float64
	Iterations      int
	Evaluations     int
	// Converged is true when the last pass found no improvement, false when MaxIters stopped the search.
	Converged bool
	Trace     []Step
}

// Service tunes field weights against self-retrieval top-k accuracy.
type Service struct {
	ranker Ranker
	n      int
	cfg    Config
	logger *zap.Logger

	// OnStart receives the initial weights as iteration 0. Optional.
	OnStart func(Step)
	// OnImprove is called for every accepted step. Optional.
	OnImprove func(Step)

	order  []int
	scores []float64
}

// New creates an optimizer over n records ranked by ranker.
func New(ranker Ranker, n int, cfg Config, logger *zap.Logger) (*Service, error) {
	if ranker == nil {
		return nil, fmt.Errorf("ranker is required: %w", ErrInvalidConfig)
	}
	if n < 0 {
		return nil, fmt.Errorf("record count %d is negative: %w", n, ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		ranker: ranker,
		n:      n,
		cfg:    cfg,
		logger: logger,
		order:  make([]int, n),
		scores: make([]float64, n),
	}, nil
}

// Validate rejects settings that would stall the search or break evaluation.
func (c Config) Validate() error {
	switch {
	case c.TopK <= 0:
		return fmt.Errorf("top_k must be positive, got %d: %w", c.TopK, ErrInvalidConfig)
	case c.StepSize <= 0:
		return fmt.Errorf("step_size must be positive, got %v: %w", c.StepSize, ErrInvalidConfig)
	case c.MaxIters <= 0:
		return fmt.Errorf("max_iters must be positive, got %d: %w", c.MaxIters, ErrInvalidConfig)
	}
	if err := c.Initial.Validate(); err != nil {
		return fmt.Errorf("initial weights: %w", err)
	}
	if c.RespectUnavailable {
		if err := c.Unavailable.Validate(); err != nil {
			return fmt.Errorf("unavailable weights: %w", err)
		}
	}
	return nil
}

// Evaluate returns the fraction of queries whose own document is ranked within the top k.
func (s *Service) Evaluate(w domain.Weights) (float64, error) {
	if err := w.Validate(); err != nil {
		return 0, err
	}
	if s.n == 0 {
		return 0, domain.ErrEmptyCorpus
	}

	policy := s.policy(w)
	k := s.cfg.TopK
	correct := 0
	for q := 0; q < s.n; q++ {
		s.order = s.ranker.RankIndices(q, policy, s.order, s.scores)
		top := s.order
		if len(top) > k {
			top = top[:k]
		}
		for _, d := range top {
			if d == q {
				correct++
				break
			}
		}
	}

	metrics.TuningEvaluationsTotal.Inc()
	return float64(correct) / float64(s.n), nil
}

func (s *Service) policy(w domain.Weights) ranking.WeightPolicy {
	if s.cfg.RespectUnavailable {
		return ranking.RegimePolicy{Default: w, Unavailable: s.cfg.Unavailable}
	}
	return ranking.UniformPolicy{Weights: w}
}

// HillClimb runs greedy first-improvement coordinate ascent from cfg.Initial.
// Each iteration tries +step then -step on title, details and feature in that order.
// An improving candidate is accepted at once and later candidates of the same pass
// perturb the updated weights. Candidates with a negative component are skipped.
func (s *Service) HillClimb(ctx context.Context) (Result, error) {
	current := s.cfg.Initial
	best, err := s.Evaluate(current)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate initial weights: %w", err)
	}
	evals := 1

	s.logger.Info("Initial weights",
		zap.Stringer("weights", current),
		zap.Float64("accuracy", best),
	)
	s.publish(current, best)
	if s.OnStart != nil {
		s.OnStart(Step{Iteration: 0, Weights: current, Accuracy: best})
	}

	res := Result{Initial: current, InitialAccuracy: best}
	deltas := [2]float64{s.cfg.StepSize, -s.cfg.StepSize}

	iteration := 0
	improved := true
	for improved && iteration < s.cfg.MaxIters {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("hill climb: %w", err)
		}
		improved = false
		iteration++

		for _, f := range domain.Fields {
			for _, delta := range deltas {
				candidate := current.Perturb(f, delta)
				if candidate.At(f) < 0 {
					continue
				}
				acc, err := s.Evaluate(candidate)
				if err != nil {
					return Result{}, fmt.Errorf("evaluate %v: %w", candidate, err)
				}
				evals++
				if acc > best {
					best = acc
					current = candidate
					improved = true

					step := Step{Iteration: iteration, Weights: current, Accuracy: best}
					res.Trace = append(res.Trace, step)
					s.publish(current, best)
					s.logger.Info("Improved weights",
						zap.Int("iteration", iteration),
						zap.Stringer("weights", current),
						zap.Float64("accuracy", best),
					)
					if s.OnImprove != nil {
						s.OnImprove(step)
					}
				}
			}
		}

		if !improved {
			s.logger.Info("No improvement, terminating hill climbing", zap.Int("iteration", iteration))
			res.Converged = true
		}
	}

	res.Best = current
	res.Accuracy = best
	res.Iterations = iteration
	res.Evaluations = evals

	s.logger.Info("Best weights found",
		zap.Stringer("weights", current),
		zap.Float64("accuracy", best),
		zap.Int("iterations", iteration),
		zap.Int("evaluations", evals),
		zap.Bool("converged", res.Converged),
	)
	return res, nil
}

func (s *Service) publish(w domain.Weights, acc float64) {
	metrics.TuningAccuracy.Set(acc)
	for _, f := range domain.Fields {
		metrics.TuningWeight.WithLabelValues(f.String()).Set(w.At(f))
	}
}
