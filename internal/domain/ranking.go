package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Ranking maps each query id to its documents in descending score order.
// Queries keep insertion order, both in memory and in JSON.
type Ranking struct {
	queries []string
	docs    map[string][]string
}

// NewRanking creates an empty ranking sized for n queries.
func NewRanking(n int) *Ranking {
	return &Ranking{
		queries: make([]string, 0, n),
		docs:    make(map[string][]string, n),
	}
}

// Set stores the ranked documents of a query. Re-setting a query keeps its original position.
func (r *Ranking) Set(queryID string, docIDs []string) {
	if _, ok := r.docs[queryID]; !ok {
		r.queries = append(r.queries, queryID)
	}
	r.docs[queryID] = docIDs
}

// Get returns the ranked documents of a query.
func (r *Ranking) Get(queryID string) ([]string, bool) {
	d, ok := r.docs[queryID]
	return d, ok
}

// Queries returns query ids in insertion order.
func (r *Ranking) Queries() []string {
	out := make([]string, len(r.queries))
	copy(out, r.queries)
	return out
}

// Len returns the number of queries.
func (r *Ranking) Len() int { return len(r.queries) }

// MarshalJSON writes a JSON object whose keys follow query insertion order.
func (r *Ranking) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, q := range r.queries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(q)
		if err != nil {
			return nil, fmt.Errorf("marshal query id: %w", err)
		}
		val, err := json.Marshal(r.docs[q])
		if err != nil {
			return nil, fmt.Errorf("marshal ranking of %q: %w", q, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping key order.
func (r *Ranking) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read ranking: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("ranking must be a JSON object")
	}

	out := NewRanking(0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read query id: %w", err)
		}
		q, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var docs []string
		if err := dec.Decode(&docs); err != nil {
			return fmt.Errorf("read ranking of %q: %w", q, err)
		}
		out.Set(q, docs)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("read ranking end: %w", err)
	}

	*r = *out
	return nil
}
