// Package matching holds the contracts and tunables shared by the person
// matching pipeline: candidate retrieval, scoring, persistence and the
// orchestrator that chains them.
package matching

import "fmt"

// Weights are the factor weights of the final score. ExactName and FuzzyName
// are mutually exclusive per candidate.
type Weights struct {
	ExactName float64 `mapstructure:"exact_name" json:"exactName"`
	FuzzyName float64 `mapstructure:"fuzzy_name" json:"fuzzyName"`
	Location  float64 `mapstructure:"location" json:"location"`
	Phone     float64 `mapstructure:"phone" json:"phone"`
	Temporal  float64 `mapstructure:"temporal" json:"temporal"`
}

// LocationWeights weight the four levels of the address hierarchy.
type LocationWeights struct {
	Country      float64 `mapstructure:"country" json:"country"`
	State        float64 `mapstructure:"state" json:"state"`
	City         float64 `mapstructure:"city" json:"city"`
	Neighborhood float64 `mapstructure:"neighborhood" json:"neighborhood"`
}

// Settings is the immutable configuration handed to the finder, the scoring
// engine and the persistor at construction time.
type Settings struct {
	MinimumMatchScore  float64         `mapstructure:"minimum_match_score" json:"minimumMatchScore"`
	FuzzyThreshold     float64         `mapstructure:"fuzzy_threshold" json:"fuzzyThreshold"`
	PartialTierTrigger int             `mapstructure:"partial_tier_trigger" json:"partialTierTrigger"`
	PartialLimit       int             `mapstructure:"partial_limit" json:"partialLimit"`
	MaxResults         int             `mapstructure:"max_results" json:"maxResults"`
	FirstNameWeight    float64         `mapstructure:"first_name_weight" json:"firstNameWeight"`
	LastNameWeight     float64         `mapstructure:"last_name_weight" json:"lastNameWeight"`
	NearExactThreshold float64         `mapstructure:"near_exact_threshold" json:"nearExactThreshold"`
	NearExactCap       float64         `mapstructure:"near_exact_cap" json:"nearExactCap"`
	Weights            Weights         `mapstructure:"weights" json:"weights"`
	LocationWeights    LocationWeights `mapstructure:"location_weights" json:"locationWeights"`
}

// DefaultSettings returns the production weights and thresholds.
func DefaultSettings() Settings {
	return Settings{
		MinimumMatchScore:  0.3,
		FuzzyThreshold:     0.6,
		PartialTierTrigger: 10,
		PartialLimit:       50,
		MaxResults:         0,
		FirstNameWeight:    0.4,
		LastNameWeight:     0.6,
		NearExactThreshold: 0.8,
		NearExactCap:       0.95,
		Weights: Weights{
			ExactName: 0.45,
			FuzzyName: 0.25,
			Location:  0.25,
			Phone:     0.03,
			Temporal:  0.02,
		},
		LocationWeights: LocationWeights{
			Country:      0.4,
			State:        0.3,
			City:         0.2,
			Neighborhood: 0.1,
		},
	}
}

// Validate checks that every weight and threshold lies in [0, 1] and that the
// retrieval bounds are usable.
func (s Settings) Validate() error {
	unit := map[string]float64{
		"minimum_match_score":           s.MinimumMatchScore,
		"fuzzy_threshold":               s.FuzzyThreshold,
		"first_name_weight":             s.FirstNameWeight,
		"last_name_weight":              s.LastNameWeight,
		"near_exact_threshold":          s.NearExactThreshold,
		"near_exact_cap":                s.NearExactCap,
		"weights.exact_name":            s.Weights.ExactName,
		"weights.fuzzy_name":            s.Weights.FuzzyName,
		"weights.location":              s.Weights.Location,
		"weights.phone":                 s.Weights.Phone,
		"weights.temporal":              s.Weights.Temporal,
		"location_weights.country":      s.LocationWeights.Country,
		"location_weights.state":        s.LocationWeights.State,
		"location_weights.city":         s.LocationWeights.City,
		"location_weights.neighborhood": s.LocationWeights.Neighborhood,
	}
	for name, v := range unit {
		if v < 0 || v > 1 {
			return fmt.Errorf("matching.%s must be within [0, 1], got %v", name, v)
		}
	}
	if s.PartialTierTrigger < 0 {
		return fmt.Errorf("matching.partial_tier_trigger must not be negative")
	}
	if s.PartialLimit <= 0 {
		return fmt.Errorf("matching.partial_limit must be positive")
	}
	if s.MaxResults < 0 {
		return fmt.Errorf("matching.max_results must not be negative")
	}
	return nil
}
