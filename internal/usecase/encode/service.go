package encode

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dsrank/internal/domain"
	"github.com/kailas-cloud/dsrank/internal/metrics"
)

// Defaults of the cache builder.
const (
	// DefaultBatchSize is the number of texts sent per embedding call.
	DefaultBatchSize = 32
	// DefaultProgressEvery is how many records pass between progress log lines.
	DefaultProgressEvery = 100
)

// Service builds the per-run embedding cache: six vectors per record.
type Service struct {
	adapters      Adapters
	batchSize     int
	progressEvery int
	logger        *zap.Logger
}

// New creates a cache builder. Every adapter slot must be set.
func New(adapters Adapters, logger *zap.Logger) (*Service, error) {
	for _, f := range domain.Fields {
		if adapters.Query[f] == nil || adapters.Document[f] == nil {
			return nil, fmt.Errorf("no embedder for %s adapter", f)
		}
	}
	return &Service{
		adapters:      adapters,
		batchSize:     DefaultBatchSize,
		progressEvery: DefaultProgressEvery,
		logger:        logger,
	}, nil
}

// WithBatchSize sets how many texts go into one embedding call.
func (s *Service) WithBatchSize(n int) *Service {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// WithProgressEvery logs progress each time another n records of an adapter are embedded.
func (s *Service) WithProgressEvery(n int) *Service {
	if n > 0 {
		s.progressEvery = n
	}
	return s
}

// Build embeds the query text of every record under each field adapter and the
// field's own text as a document. Any embedding failure aborts the build.
func (s *Service) Build(ctx context.Context, records []domain.Record) (*domain.EmbeddingSet, error) {
	if err := validate(records); err != nil {
		return nil, err
	}

	start := time.Now()
	queries := make(domain.FieldEmbeddings, len(domain.Fields))
	docs := make(domain.FieldEmbeddings, len(domain.Fields))

	for _, f := range domain.Fields {
		qTexts := make([]string, len(records))
		dTexts := make([]string, len(records))
		for i, rec := range records {
			qTexts[i] = rec.Query
			dTexts[i] = rec.Text(f)
		}

		qv, err := s.embedAll(ctx, domain.RoleQuery, f, records, qTexts)
		if err != nil {
			return nil, err
		}
		dv, err := s.embedAll(ctx, domain.RoleDocument, f, records, dTexts)
		if err != nil {
			return nil, err
		}
		queries[f] = qv
		docs[f] = dv
	}

	set, err := domain.NewEmbeddingSet(records, queries, docs)
	if err != nil {
		return nil, fmt.Errorf("embedding set: %w", err)
	}

	metrics.EmbeddedRecordsTotal.Add(float64(len(records)))
	s.logger.Info("Embeddings computed",
		zap.Int("records", len(records)),
		zap.Int("title_dims", set.Dimensions(domain.FieldTitle)),
		zap.Int("details_dims", set.Dimensions(domain.FieldDetails)),
		zap.Int("feature_dims", set.Dimensions(domain.FieldFeature)),
		zap.Duration("duration", time.Since(start)),
	)
	return set, nil
}

func (s *Service) embedAll(
	ctx context.Context, role domain.Role, f domain.Field,
	records []domain.Record, texts []string,
) (map[string][]float32, error) {
	emb := s.adapters.get(role, f)
	out := make(map[string][]float32, len(texts))

	for offset := 0; offset < len(texts); offset += s.batchSize {
		end := offset + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		res, err := embedBatch(ctx, emb, texts[offset:end])
		if err != nil {
			return nil, fmt.Errorf("%s %s embeddings of record %q: %w",
				role, f, records[offset].ID, err)
		}
		if len(res.Embeddings) != end-offset {
			return nil, fmt.Errorf("%s %s embeddings: got %d vectors for %d texts: %w",
				role, f, len(res.Embeddings), end-offset, domain.ErrEmbeddingProviderError)
		}
		for i, vec := range res.Embeddings {
			out[records[offset+i].ID] = vec
		}

		// одна строка на каждые progressEvery записей
		if end/s.progressEvery > offset/s.progressEvery {
			s.logger.Info("Computing embeddings",
				zap.Stringer("role", role),
				zap.Stringer("adapter", f),
				zap.Int("done", end),
				zap.Int("total", len(texts)),
			)
		}
	}

	s.logger.Info("Adapter embeddings computed",
		zap.Stringer("role", role),
		zap.Stringer("adapter", f),
		zap.Int("records", len(texts)),
	)
	return out, nil
}

func embedBatch(ctx context.Context, e domain.Embedder, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := e.(domain.BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		return res, nil
	}
	res, err := domain.BatchFallback(ctx, e, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch fallback: %w", err)
	}
	return res, nil
}

func validate(records []domain.Record) error {
	if len(records) == 0 {
		return domain.ErrEmptyCorpus
	}
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if _, dup := seen[rec.ID]; dup {
			return fmt.Errorf("record %q: %w", rec.ID, domain.ErrDuplicateRecord)
		}
		seen[rec.ID] = struct{}{}
	}
	return nil
}
