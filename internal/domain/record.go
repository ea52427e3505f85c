package domain

import "fmt"

// UnavailableFeature marks a record whose feature summary could not be produced.
const UnavailableFeature = "[UNAVAILABLE]"

// Field identifies one of the three textual fields and the adapter that embeds it.
type Field int

// Fields in score order. The order is also the coordinate order of Weights.
const (
	FieldTitle Field = iota
	FieldDetails
	FieldFeature
)

// Fields lists all fields in coordinate order.
var Fields = [...]Field{FieldTitle, FieldDetails, FieldFeature}

// String returns the adapter name of the field.
func (f Field) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldDetails:
		return "details"
	case FieldFeature:
		return "feature_summary"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// ParseField maps an adapter name to a Field.
func ParseField(s string) (Field, error) {
	switch s {
	case "title":
		return FieldTitle, nil
	case "details":
		return FieldDetails, nil
	case "feature_summary":
		return FieldFeature, nil
	default:
		return 0, fmt.Errorf("unknown field %q", s)
	}
}

// Role says which side of a query/document pair a vector belongs to.
type Role int

const (
	// RoleQuery vectors are computed from Record.Query.
	RoleQuery Role = iota
	// RoleDocument vectors are computed from the field's own text.
	RoleDocument
)

func (r Role) String() string {
	if r == RoleQuery {
		return "query"
	}
	return "document"
}

// Record is one entry of the experiment corpus. Every record is both a query and a document.
type Record struct {
	ID             string `json:"id"`
	Query          string `json:"query"`
	Title          string `json:"title"`
	Details        string `json:"details"`
	FeatureSummary string `json:"feature_summary"`
}

// FeatureAvailable reports whether the feature summary holds real content.
func (r Record) FeatureAvailable() bool {
	return r.FeatureSummary != UnavailableFeature
}

// Text returns the document text of the given field.
func (r Record) Text(f Field) string {
	switch f {
	case FieldTitle:
		return r.Title
	case FieldDetails:
		return r.Details
	default:
		return r.FeatureSummary
	}
}

// Validate checks that the record can take part in a run.
func (r Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record id is required: %w", ErrInvalidRecord)
	}
	return nil
}

// Dataset is a registry entry kept by the scraper.
type Dataset struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// DatasetRef is one row of the registry listing.
type DatasetRef struct {
	ID   string
	Name string
}
