package ranking

import "github.com/kailas-cloud/dsrank/internal/domain"

// WeightPolicy picks the weight triple used to score a document.
type WeightPolicy interface {
	WeightsFor(featureAvailable bool) domain.Weights
}

// RegimePolicy selects weights by the document's feature summary availability.
type RegimePolicy struct {
	Default     domain.Weights
	Unavailable domain.Weights
}

// DefaultRegime returns the policy used for the persisted ranking.
func DefaultRegime() RegimePolicy {
	return RegimePolicy{Default: domain.DefaultWeights, Unavailable: domain.UnavailableWeights}
}

// WeightsFor implements WeightPolicy.
func (p RegimePolicy) WeightsFor(featureAvailable bool) domain.Weights {
	if featureAvailable {
		return p.Default
	}
	return p.Unavailable
}

// UniformPolicy applies the same weights to every document.
type UniformPolicy struct {
	Weights domain.Weights
}

// WeightsFor implements WeightPolicy.
func (p UniformPolicy) WeightsFor(bool) domain.Weights {
	return p.Weights
}
