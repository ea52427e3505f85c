package tuning

import "github.com/kailas-cloud/dsrank/internal/usecase/ranking"

// Ranker ranks documents for a query position. Implemented by ranking.Service.
type Ranker interface {
	RankIndices(q int, policy ranking.WeightPolicy, order []int, scores []float64) []int
}
