package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/dsrank/internal/domain"
)

const (
	rankingIndent = "    "
	datasetIndent = "  "
)

// rawRecord detects absent keys: every field of a record is required.
type rawRecord struct {
	ID             *string `json:"id"`
	Query          *string `json:"query"`
	Title          *string `json:"title"`
	Details        *string `json:"details"`
	FeatureSummary *string `json:"feature_summary"`
}

// LoadRecords reads the experiment corpus: a JSON array of records.
func LoadRecords(path string) ([]domain.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records %s: %w", path, err)
	}
	recs, err := DecodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("records %s: %w", path, err)
	}
	return recs, nil
}

// DecodeRecords parses a JSON array of records. A missing key or an empty id is ErrInvalidRecord.
func DecodeRecords(data []byte) ([]domain.Record, error) {
	var raw []rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	out := make([]domain.Record, len(raw))
	for i, r := range raw {
		missing := missingKey(r)
		if missing != "" {
			return nil, fmt.Errorf("record #%d: missing %q: %w", i, missing, domain.ErrInvalidRecord)
		}
		out[i] = domain.Record{
			ID:             *r.ID,
			Query:          *r.Query,
			Title:          *r.Title,
			Details:        *r.Details,
			FeatureSummary: *r.FeatureSummary,
		}
		if err := out[i].Validate(); err != nil {
			return nil, fmt.Errorf("record #%d: %w", i, err)
		}
	}
	return out, nil
}

func missingKey(r rawRecord) string {
	switch {
	case r.ID == nil:
		return "id"
	case r.Query == nil:
		return "query"
	case r.Title == nil:
		return "title"
	case r.Details == nil:
		return "details"
	case r.FeatureSummary == nil:
		return "feature_summary"
	}
	return ""
}

// SaveRanking writes the query -> ranked documents object, keys in query order.
func SaveRanking(path string, r *domain.Ranking) error {
	if r == nil {
		return errors.New("nil ranking")
	}
	return writeJSON(path, r, rankingIndent)
}

// SaveDatasets writes the scraper output array.
func SaveDatasets(path string, datasets []domain.Dataset) error {
	if datasets == nil {
		datasets = []domain.Dataset{}
	}
	return writeJSON(path, datasets, datasetIndent)
}

// LoadDatasets reads a file written by SaveDatasets.
func LoadDatasets(path string) ([]domain.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read datasets %s: %w", path, err)
	}
	var out []domain.Dataset
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode datasets %s: %w", path, err)
	}
	return out, nil
}

// writeJSON encodes v to a temp file next to path, then renames it into place.
func writeJSON(path string, v any, indent string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() // no-op after rename

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
