package location

import (
	"matching-workers/internal/matching"
	"matching-workers/internal/matching/similarity"
	"matching-workers/internal/models"
)

// GeoScorer weighs per-field place similarity into one address score.
type GeoScorer struct {
	normalizer *Normalizer
	weights    matching.LocationWeights
	nearExact  float64
	cap        float64
}

func NewGeoScorer(settings matching.Settings, normalizer *Normalizer) *GeoScorer {
	if normalizer == nil {
		normalizer = NewNormalizer(nil)
	}
	return &GeoScorer{
		normalizer: normalizer,
		weights:    settings.LocationWeights,
		nearExact:  settings.NearExactThreshold,
		cap:        settings.NearExactCap,
	}
}

// Score returns 0 when either address is nil. Missing fields contribute 0
// and the remaining weights are not rescaled.
func (g *GeoScorer) Score(query, candidate *models.Address) float64 {
	if query == nil || candidate == nil {
		return 0
	}

	score := g.weights.Country*g.FieldScore(query.Country, candidate.Country) +
		g.weights.State*g.FieldScore(query.State, candidate.State) +
		g.weights.City*g.FieldScore(query.City, candidate.City) +
		g.weights.Neighborhood*g.FieldScore(query.Neighborhood, candidate.Neighborhood)

	if score > 1 {
		return 1
	}
	return score
}

// FieldScore compares one address level. Equal after normalization scores 1;
// near-exact pairs are held at or below the cap so they stay distinguishable
// from true equality.
func (g *GeoScorer) FieldScore(a, b string) float64 {
	na, nb := g.normalizer.Normalize(a), g.normalizer.Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	sim := similarity.Similarity(na, nb)
	if sim >= g.nearExact && sim > g.cap {
		return g.cap
	}
	return sim
}

// SameLocation reports whether two place names are equal or differ only by
// formatting the normalizer cannot see.
func (g *GeoScorer) SameLocation(a, b string) bool {
	return g.FieldScore(a, b) >= g.cap
}
