package search

import (
	"context"

	"matching-workers/internal/matching"
)

// FuzzyFinder serves only the fuzzy retrieval tier.
type FuzzyFinder interface {
	FindCandidatesFuzzy(ctx context.Context, first, last string, excludeAccount int64, threshold float64) (matching.FuzzyResult, error)
}

// Hybrid routes the fuzzy tier to another backend and everything else to the
// base store.
type Hybrid struct {
	matching.Store
	fuzzy FuzzyFinder
}

func NewHybrid(base matching.Store, fuzzy FuzzyFinder) *Hybrid {
	return &Hybrid{Store: base, fuzzy: fuzzy}
}

func (h *Hybrid) FindCandidatesFuzzy(ctx context.Context, first, last string, excludeAccount int64, threshold float64) (matching.FuzzyResult, error) {
	return h.fuzzy.FindCandidatesFuzzy(ctx, first, last, excludeAccount, threshold)
}

// Disabled reports the fuzzy tier as Unavailable on every call.
type Disabled struct{}

func (Disabled) FindCandidatesFuzzy(context.Context, string, string, int64, float64) (matching.FuzzyResult, error) {
	return matching.FuzzyUnavailable("fuzzy tier disabled"), nil
}
