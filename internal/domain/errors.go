package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrIncompleteEmbeddings signals a missing (id, role, field) entry in the embedding set.
	ErrIncompleteEmbeddings = errors.New("incomplete embeddings")
	// ErrDuplicateRecord signals two records sharing one id.
	ErrDuplicateRecord = errors.New("duplicate record id")
	// ErrEmptyCorpus signals a run over zero records.
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrInvalidRecord signals a record that cannot take part in a run.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrInvalidWeights signals a weight vector with a negative component.
	ErrInvalidWeights = errors.New("invalid weights")
	// ErrUnknownRecord signals an id absent from the embedding set.
	ErrUnknownRecord = errors.New("unknown record")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRegistryError signals a dataset registry failure.
	ErrRegistryError = errors.New("dataset registry error")
	// ErrNoMoreResults signals the end of a paged registry listing.
	ErrNoMoreResults = errors.New("no more results")
)

// MissingEmbeddingError wraps ErrIncompleteEmbeddings with the offending cache entry.
type MissingEmbeddingError struct {
	ID    string
	Role  Role
	Field Field
}

func (e *MissingEmbeddingError) Error() string {
	return fmt.Sprintf("%s: no %s embedding for %s of record %q",
		ErrIncompleteEmbeddings.Error(), e.Role, e.Field, e.ID)
}

func (e *MissingEmbeddingError) Unwrap() error { return ErrIncompleteEmbeddings }

// NewMissingEmbedding creates a missing embedding error.
func NewMissingEmbedding(id string, role Role, field Field) error {
	return &MissingEmbeddingError{ID: id, Role: role, Field: field}
}
