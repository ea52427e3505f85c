package domain

import "fmt"

// Dot returns the inner product of a and b accumulated in float64.
// Vectors of different length are an error, never truncated.
func Dot(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dot %d vs %d: %w", len(a), len(b), ErrVectorDimMismatch)
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum, nil
}
