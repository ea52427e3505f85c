package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dsrank/internal/config"
	"github.com/kailas-cloud/dsrank/internal/db"
	dbBadger "github.com/kailas-cloud/dsrank/internal/db/badger"
	"github.com/kailas-cloud/dsrank/internal/db/memory"
	dbRedis "github.com/kailas-cloud/dsrank/internal/db/redis"
	dbValkey "github.com/kailas-cloud/dsrank/internal/db/valkey"
	"github.com/kailas-cloud/dsrank/internal/domain"
	"github.com/kailas-cloud/dsrank/internal/metrics"
	"github.com/kailas-cloud/dsrank/internal/repository/embcache"
	openaiEmb "github.com/kailas-cloud/dsrank/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/dsrank/internal/usecase/embedding"
	"github.com/kailas-cloud/dsrank/internal/usecase/encode"
	healthuc "github.com/kailas-cloud/dsrank/internal/usecase/health"
)

// openCacheStore returns the embedding cache store, or nil for driver "none".
func openCacheStore(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (db.Store, error) {
	var (
		store db.Store
		err   error
	)
	switch cfg.Driver {
	case "none":
		return nil, nil
	case "memory":
		return memory.NewStore(), nil
	case "badger":
		store, err = dbBadger.Open(dbBadger.Config{Dir: cfg.Dir})
	case "valkey":
		store, err = dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
	}

	if err := store.WaitForReady(ctx, cfg.Readiness()); err != nil {
		store.Close()
		return nil, fmt.Errorf("%s not ready: %w", cfg.Driver, err)
	}
	logger.Info("Connected to cache store",
		zap.String("driver", cfg.Driver),
		zap.Strings("addrs", cfg.Addrs),
	)
	return store, nil
}

// newEmbedderFunc creates the base provider of one adapter. Replaced in tests.
type newEmbedderFunc func(cfg config.EmbeddingConfig, model string, logger *zap.Logger) domain.Embedder

func newOpenAIEmbedder(cfg config.EmbeddingConfig, model string, logger *zap.Logger) domain.Embedder {
	return openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Timeout:    cfg.Timeout(),
		Logger:     logger,
	})
}

// buildAdapters assembles one decorator chain per field adapter:
// OpenAI -> Instrumented -> Cached -> Truncating.
// Cache hits never reach the instrumented layer, so usage counts only provider calls.
// Query and document embedders of a field share the chain below truncation, so the
// cache is keyed by the truncated text.
func buildAdapters(
	cfg config.Config,
	store db.KVStore,
	newBase newEmbedderFunc,
	logger *zap.Logger,
) (encode.Adapters, map[string]healthuc.DependencyChecker) {
	var adapters encode.Adapters
	checks := make(map[string]healthuc.DependencyChecker, len(domain.Fields))

	for _, f := range domain.Fields {
		ad := cfg.Embedding.Adapter(f)

		instrumented := embeddinguc.NewInstrumentedEmbedder(
			newBase(cfg.Embedding, ad.Model, logger), cfg.Embedding.Provider, ad.Model, logger,
		).WithMaxBatchSize(cfg.Embedding.MaxAPIBatchSize)

		var embedder domain.Embedder = instrumented

		// Cached (prefix per adapter model: the same text embeds differently under each adapter)
		if store != nil {
			prefix := cfg.Cache.KeyPrefix + "emb:" + ad.Model + ":"
			embedder = embcache.New(instrumented, store, prefix, metrics.EmbeddingCacheTotal, logger).
				WithTTL(cfg.Cache.TTL())
		}

		// Truncation is outermost
		adapters.Query[f] = domain.NewTruncatingEmbedder(embedder, cfg.Embedding.QueryMaxTokens)
		adapters.Document[f] = domain.NewTruncatingEmbedder(embedder, ad.DocumentMaxTokens)
		checks[f.String()] = instrumented

		logger.Info("Adapter embedder created",
			zap.String("field", f.String()),
			zap.String("model", ad.Model),
			zap.Int("query_max_tokens", cfg.Embedding.QueryMaxTokens),
			zap.Int("document_max_tokens", ad.DocumentMaxTokens),
			zap.Bool("cached", store != nil),
		)
	}
	return adapters, checks
}
