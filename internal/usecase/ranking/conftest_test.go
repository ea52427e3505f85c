package ranking

import (
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dsrank/internal/domain"
)

// vecs описывает векторы одной записи: одинаковые по всем трём полям, если поле не задано отдельно.
type vecs struct {
	query [len(domain.Fields)][]float32
	doc   [len(domain.Fields)][]float32
}

func same(v []float32) [len(domain.Fields)][]float32 {
	return [len(domain.Fields)][]float32{v, v, v}
}

func newTestSet(t *testing.T, records []domain.Record, byID map[string]vecs) *domain.EmbeddingSet {
	t.Helper()
	q := domain.FieldEmbeddings{}
	d := domain.FieldEmbeddings{}
	for _, f := range domain.Fields {
		q[f] = map[string][]float32{}
		d[f] = map[string][]float32{}
	}
	for id, v := range byID {
		for _, f := range domain.Fields {
			q[f][id] = v.query[f]
			d[f][id] = v.doc[f]
		}
	}
	set, err := domain.NewEmbeddingSet(records, q, d)
	if err != nil {
		t.Fatalf("embedding set: %v", err)
	}
	return set
}

func newTestService(t *testing.T, set *domain.EmbeddingSet) *Service {
	t.Helper()
	svc, err := New(set, zap.NewNop())
	if err != nil {
		t.Fatalf("new ranking service: %v", err)
	}
	return svc
}

// orthonormalSet builds A, B, C where q_A matches d_A in every field and is orthogonal to d_B, d_C.
func orthonormalSet(t *testing.T) *domain.EmbeddingSet {
	t.Helper()
	e0 := []float32{1, 0, 0}
	e1 := []float32{0, 1, 0}
	e2 := []float32{0, 0, 1}
	records := []domain.Record{
		{ID: "A", FeatureSummary: "f"},
		{ID: "B", FeatureSummary: "f"},
		{ID: "C", FeatureSummary: "f"},
	}
	return newTestSet(t, records, map[string]vecs{
		"A": {query: same(e0), doc: same(e0)},
		"B": {query: same(e1), doc: same(e1)},
		"C": {query: same(e2), doc: same(e2)},
	})
}
