package domain

import (
	"context"
	"fmt"
	"strings"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single API call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries multiple embedding vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// BatchFallback вызывает Embed по одному для каждого текста. Safety net для провайдеров
// без нативного batch.
func BatchFallback(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	embeddings := make([][]float32, len(texts))
	var totalPrompt, totalTokens int

	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("fallback embed [%d]: %w", i, err)
		}
		embeddings[i] = res.Embedding
		totalPrompt += res.PromptTokens
		totalTokens += res.TotalTokens
	}

	return BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
	}, nil
}

// Truncate keeps at most maxTokens whitespace-separated tokens of text.
// maxTokens <= 0 disables truncation. Text within the limit is returned unchanged.
func Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	fields := strings.Fields(text)
	if len(fields) <= maxTokens {
		return text
	}
	return strings.Join(fields[:maxTokens], " ")
}

// TruncatingEmbedder is a domain decorator that cuts input text to a token limit before embedding.
type TruncatingEmbedder struct {
	inner     Embedder
	maxTokens int
}

// NewTruncatingEmbedder creates a decorator that truncates text to maxTokens.
func NewTruncatingEmbedder(inner Embedder, maxTokens int) *TruncatingEmbedder {
	return &TruncatingEmbedder{inner: inner, maxTokens: maxTokens}
}

// MaxTokens returns the configured token limit.
func (e *TruncatingEmbedder) MaxTokens() int { return e.maxTokens }

// Embed truncates text and delegates to inner embedder.
func (e *TruncatingEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	result, err := e.inner.Embed(ctx, Truncate(text, e.maxTokens))
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("truncated embed: %w", err)
	}
	return result, nil
}

// BatchEmbed truncates each text and delegates to inner BatchEmbedder.
// Если inner не поддерживает batch: fallback на поштучный Embed.
func (e *TruncatingEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	cut := make([]string, len(texts))
	for i, t := range texts {
		cut[i] = Truncate(t, e.maxTokens)
	}

	if be, ok := e.inner.(BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, cut)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("truncated batch embed: %w", err)
		}
		return res, nil
	}

	res, err := BatchFallback(ctx, e.inner, cut)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("truncated batch embed fallback: %w", err)
	}
	return res, nil
}
