package domain

import "fmt"

// FieldVectors holds one vector per field, indexed by Field.
type FieldVectors [len(Fields)][]float32

// FieldEmbeddings maps field -> record id -> vector. It is the raw output of the cache builder.
type FieldEmbeddings map[Field]map[string][]float32

// EmbeddingSet is the immutable per-run cache of query and document vectors.
// Records keep their input order, which is also the tie-break order of rankings.
type EmbeddingSet struct {
	ids       []string
	index     map[string]int
	queries   []FieldVectors
	docs      []FieldVectors
	available []bool
	dims      [len(Fields)]int
}

// NewEmbeddingSet validates that every (id, role, field) entry is present and that
// vectors of one field share a dimension, then freezes the result.
func NewEmbeddingSet(records []Record, queries, docs FieldEmbeddings) (*EmbeddingSet, error) {
	if len(records) == 0 {
		return nil, ErrEmptyCorpus
	}

	s := &EmbeddingSet{
		ids:       make([]string, len(records)),
		index:     make(map[string]int, len(records)),
		queries:   make([]FieldVectors, len(records)),
		docs:      make([]FieldVectors, len(records)),
		available: make([]bool, len(records)),
	}
	for i := range s.dims {
		s.dims[i] = -1
	}

	for i, rec := range records {
		if _, dup := s.index[rec.ID]; dup {
			return nil, fmt.Errorf("record %q: %w", rec.ID, ErrDuplicateRecord)
		}
		s.ids[i] = rec.ID
		s.index[rec.ID] = i
		s.available[i] = rec.FeatureAvailable()

		for _, f := range Fields {
			q, err := s.take(queries, rec.ID, RoleQuery, f)
			if err != nil {
				return nil, err
			}
			d, err := s.take(docs, rec.ID, RoleDocument, f)
			if err != nil {
				return nil, err
			}
			s.queries[i][f] = q
			s.docs[i][f] = d
		}
	}

	return s, nil
}

func (s *EmbeddingSet) take(src FieldEmbeddings, id string, role Role, f Field) ([]float32, error) {
	vec, ok := src[f][id]
	if !ok || len(vec) == 0 {
		return nil, NewMissingEmbedding(id, role, f)
	}
	if s.dims[f] == -1 {
		s.dims[f] = len(vec)
	} else if s.dims[f] != len(vec) {
		return nil, fmt.Errorf("%s %s vector of %q has %d dims, want %d: %w",
			role, f, id, len(vec), s.dims[f], ErrVectorDimMismatch)
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, nil
}

// Len returns the number of records.
func (s *EmbeddingSet) Len() int { return len(s.ids) }

// IDs returns record ids in enumeration order.
func (s *EmbeddingSet) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// ID returns the id at position i.
func (s *EmbeddingSet) ID(i int) string { return s.ids[i] }

// Index returns the position of id.
func (s *EmbeddingSet) Index(id string) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// Query returns the query vectors of record i. Callers must not modify them.
func (s *EmbeddingSet) Query(i int) FieldVectors { return s.queries[i] }

// Document returns the document vectors of record i. Callers must not modify them.
func (s *EmbeddingSet) Document(i int) FieldVectors { return s.docs[i] }

// FeatureAvailable reports whether document i has a real feature summary.
func (s *EmbeddingSet) FeatureAvailable(i int) bool { return s.available[i] }

// Dimensions returns the vector length of field f.
func (s *EmbeddingSet) Dimensions(f Field) int { return s.dims[f] }
