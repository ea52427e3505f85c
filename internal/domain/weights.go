package domain

import "fmt"

// Weights is the per-field weight triple of the composite score.
// Components are non-negative and need not sum to 1.
type Weights struct {
	Title   float64 `json:"title" yaml:"title"`
	Details float64 `json:"details" yaml:"details"`
	Feature float64 `json:"feature" yaml:"feature"`
}

var (
	// DefaultWeights apply to documents with an available feature summary.
	DefaultWeights = Weights{Title: 0.1, Details: 0.6, Feature: 0.3}
	// UnavailableWeights apply to documents whose feature summary is UnavailableFeature.
	UnavailableWeights = Weights{Title: 0.1, Details: 0.9, Feature: 0.0}
)

// At returns the component weighting field f.
func (w Weights) At(f Field) float64 {
	switch f {
	case FieldTitle:
		return w.Title
	case FieldDetails:
		return w.Details
	default:
		return w.Feature
	}
}

// Perturb returns a copy with delta added to the given coordinate.
func (w Weights) Perturb(f Field, delta float64) Weights {
	switch f {
	case FieldTitle:
		w.Title += delta
	case FieldDetails:
		w.Details += delta
	default:
		w.Feature += delta
	}
	return w
}

// Scale multiplies every component by c.
func (w Weights) Scale(c float64) Weights {
	return Weights{Title: w.Title * c, Details: w.Details * c, Feature: w.Feature * c}
}

// Validate rejects negative components.
func (w Weights) Validate() error {
	for _, f := range Fields {
		if w.At(f) < 0 {
			return fmt.Errorf("%s weight %v is negative: %w", f, w.At(f), ErrInvalidWeights)
		}
	}
	return nil
}

func (w Weights) String() string {
	return fmt.Sprintf("[%g, %g, %g]", w.Title, w.Details, w.Feature)
}
