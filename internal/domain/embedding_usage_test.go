package domain

import (
	"context"
	"testing"
)

func TestEmbeddingUsage(t *testing.T) {
	if UsageFromContext(context.Background()) != nil {
		t.Fatal("expected nil usage without collector")
	}

	ctx, u := NewContextWithUsage(context.Background())
	UsageFromContext(ctx).AddTokens(10)
	UsageFromContext(ctx).AddTokens(0)

	if u.TotalTokens() != 10 {
		t.Errorf("expected 10 tokens, got %d", u.TotalTokens())
	}
	if u.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", u.Calls())
	}
}

func TestEmbeddingUsage_NilSafe(t *testing.T) {
	var u *EmbeddingUsage
	u.AddTokens(5)
	if u.TotalTokens() != 0 || u.Calls() != 0 {
		t.Error("nil collector must report zero")
	}
}
