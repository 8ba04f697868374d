// Package persistence writes qualified match results in one bulk operation.
package persistence

import (
	"context"
	"fmt"
	"math"
	"time"

	"matching-workers/internal/common/logger"
	"matching-workers/internal/matching"
	"matching-workers/internal/matching/scoring"
	"matching-workers/internal/models"
)

type Persistor struct {
	writer   matching.MatchWriter
	minScore float64
	now      func() time.Time
	logger   logger.Logger
}

type Option func(*Persistor)

func WithClock(now func() time.Time) Option {
	return func(p *Persistor) { p.now = now }
}

func NewPersistor(writer matching.MatchWriter, settings matching.Settings, log logger.Logger, opts ...Option) *Persistor {
	p := &Persistor{
		writer:   writer,
		minScore: settings.MinimumMatchScore,
		now:      time.Now,
		logger:   logger.ForComponent(log, "match-persistor"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Qualified keeps candidates scoring at least minScore, preserving order.
func Qualified(scored []scoring.ScoredCandidate, minScore float64) []scoring.ScoredCandidate {
	out := make([]scoring.ScoredCandidate, 0, len(scored))
	for _, s := range scored {
		if s.Score >= minScore {
			out = append(out, s)
		}
	}
	return out
}

// Persist inserts one unverified MatchResult per qualified candidate and
// returns the number of rows actually written. It never deletes; clearing
// earlier results is the caller's job. Repeated accounts in the input and
// pairs already stored are skipped, not reported as errors.
func (p *Persistor) Persist(ctx context.Context, query *models.QueryProfile, scored []scoring.ScoredCandidate) (int, error) {
	qualified := Qualified(scored, p.minScore)
	if len(qualified) == 0 {
		return 0, nil
	}

	now := p.now().UTC()
	seen := make(map[int64]struct{}, len(qualified))
	rows := make([]models.MatchResult, 0, len(qualified))
	for _, s := range qualified {
		account := s.AccountID()
		if account == query.OwnerID {
			continue
		}
		if _, dup := seen[account]; dup {
			continue
		}
		seen[account] = struct{}{}
		rows = append(rows, models.MatchResult{
			QueryProfileID:  query.ID,
			MatchedUserID:   account,
			SimilarityScore: RoundScore(s.Score),
			IsVerified:      false,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	inserted, err := p.writer.BulkInsertMatches(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("%w: bulk insert %d matches: %w", matching.ErrPersistFailed, len(rows), err)
	}

	if skipped := len(rows) - inserted; skipped > 0 {
		p.logger.Warn("existing matches left untouched", map[string]interface{}{
			"queryProfileId": query.ID,
			"skipped":        skipped,
		})
	}
	return inserted, nil
}

// RoundScore rounds to three decimals and clamps to [0, 1].
func RoundScore(score float64) float64 {
	r := math.Round(score*1000) / 1000
	return math.Max(0, math.Min(1, r))
}
