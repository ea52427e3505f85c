package ranking

import (
	"fmt"

	"github.com/kailas-cloud/dsrank/internal/domain"
)

// Similarities holds the per-field query x document dot products of an embedding set.
// They do not depend on weights, so every ranking or evaluation pass reuses them.
type Similarities struct {
	n    int
	sims [len(domain.Fields)][]float64 // row-major n x n per field
}

// NewSimilarities computes all |Q| x |D| dot products for the three fields.
func NewSimilarities(set *domain.EmbeddingSet) (*Similarities, error) {
	n := set.Len()
	s := &Similarities{n: n}
	for _, f := range domain.Fields {
		s.sims[f] = make([]float64, n*n)
	}

	for q := 0; q < n; q++ {
		qv := set.Query(q)
		for d := 0; d < n; d++ {
			dv := set.Document(d)
			for _, f := range domain.Fields {
				dot, err := domain.Dot(qv[f], dv[f])
				if err != nil {
					return nil, fmt.Errorf("%s similarity of query %q and document %q: %w",
						f, set.ID(q), set.ID(d), err)
				}
				s.sims[f][q*n+d] = dot
			}
		}
	}

	return s, nil
}

// At returns dot(q_f, d_f).
func (s *Similarities) At(f domain.Field, q, d int) float64 {
	return s.sims[f][q*s.n+d]
}

// Composite returns w_title*s_title + w_details*s_details + w_feature*s_feature.
func (s *Similarities) Composite(q, d int, w domain.Weights) float64 {
	i := q*s.n + d
	return w.Title*s.sims[domain.FieldTitle][i] +
		w.Details*s.sims[domain.FieldDetails][i] +
		w.Feature*s.sims[domain.FieldFeature][i]
}
