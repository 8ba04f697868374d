// Package candidates retrieves the bounded set of person records worth
// scoring against a query profile.
package candidates

import (
	"context"
	"fmt"
	"strings"

	"matching-workers/internal/common/logger"
	"matching-workers/internal/matching"
	"matching-workers/internal/models"
)

// Candidate is a retrieved record tagged with the tier that first found it.
type Candidate struct {
	Record    models.CandidateRecord
	MatchType models.MatchType
}

// Result is the deduplicated candidate set plus per-tier diagnostics.
type Result struct {
	Candidates   []Candidate
	TierCounts   map[models.MatchType]int
	FuzzySkipped bool
	SkipReason   string
	Excluded     int
	Duplicates   int
}

type Finder struct {
	source   matching.CandidateSource
	settings matching.Settings
	logger   logger.Logger
}

func NewFinder(source matching.CandidateSource, settings matching.Settings, log logger.Logger) *Finder {
	return &Finder{
		source:   source,
		settings: settings,
		logger:   logger.ForComponent(log, "candidate-finder"),
	}
}

// Find runs the exact tier, the fuzzy tier when exact found nothing, and the
// partial tier while fewer than PartialTierTrigger records were gathered.
// Records are unique by account and never belong to the query owner.
func (f *Finder) Find(ctx context.Context, query *models.QueryProfile) (*Result, error) {
	if query == nil || !query.HasName() {
		return nil, matching.ErrInvalidQueryProfile
	}

	first := strings.TrimSpace(query.FirstName)
	last := strings.TrimSpace(query.LastName)

	res := &Result{TierCounts: make(map[models.MatchType]int, 3)}
	var gathered []Candidate

	exact, err := f.source.FindCandidatesExact(ctx, first, last, query.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("exact tier: %w", err)
	}
	gathered = appendTier(gathered, exact, models.MatchTypeExact)
	res.TierCounts[models.MatchTypeExact] = len(exact)

	if len(gathered) == 0 {
		fuzzy, err := f.source.FindCandidatesFuzzy(ctx, first, last, query.OwnerID, f.settings.FuzzyThreshold)
		if err != nil {
			return nil, fmt.Errorf("fuzzy tier: %w", err)
		}
		if fuzzy.Availability == matching.Unavailable {
			res.FuzzySkipped = true
			res.SkipReason = fuzzy.Reason
			f.logger.WithError(fuzzy.Err()).Warn("fuzzy tier unavailable, skipping", map[string]interface{}{
				"queryProfileId": query.ID,
			})
		} else {
			gathered = appendTier(gathered, fuzzy.Candidates, models.MatchTypeFuzzy)
			res.TierCounts[models.MatchTypeFuzzy] = len(fuzzy.Candidates)
		}
	}

	if len(gathered) < f.settings.PartialTierTrigger {
		partial, err := f.source.FindCandidatesPartial(ctx, first, last, query.OwnerID, f.settings.PartialLimit)
		if err != nil {
			return nil, fmt.Errorf("partial tier: %w", err)
		}
		if len(partial) > f.settings.PartialLimit {
			partial = partial[:f.settings.PartialLimit]
		}
		gathered = appendTier(gathered, partial, models.MatchTypePartial)
		res.TierCounts[models.MatchTypePartial] = len(partial)
	}

	seen := make(map[int64]struct{}, len(gathered))
	for _, c := range gathered {
		if c.Record.AccountID == query.OwnerID {
			res.Excluded++
			continue
		}
		if _, dup := seen[c.Record.AccountID]; dup {
			res.Duplicates++
			continue
		}
		seen[c.Record.AccountID] = struct{}{}
		res.Candidates = append(res.Candidates, c)
	}

	f.logger.Debug("candidates gathered", map[string]interface{}{
		"queryProfileId": query.ID,
		"exact":          res.TierCounts[models.MatchTypeExact],
		"fuzzy":          res.TierCounts[models.MatchTypeFuzzy],
		"partial":        res.TierCounts[models.MatchTypePartial],
		"unique":         len(res.Candidates),
		"excluded":       res.Excluded,
	})

	return res, nil
}

func appendTier(dst []Candidate, records []models.CandidateRecord, tier models.MatchType) []Candidate {
	for _, r := range records {
		dst = append(dst, Candidate{Record: r, MatchType: tier})
	}
	return dst
}
