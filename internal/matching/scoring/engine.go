// Package scoring combines name, location, phone and temporal similarity
// into one ranked score per candidate.
package scoring

import (
	"sort"
	"time"

	"matching-workers/internal/matching"
	"matching-workers/internal/matching/candidates"
	"matching-workers/internal/matching/location"
	"matching-workers/internal/matching/similarity"
	"matching-workers/internal/models"
)

// Factor names a scoring dimension in a Breakdown.
type Factor string

const (
	FactorName     Factor = "name"
	FactorLocation Factor = "location"
	FactorPhone    Factor = "phone"
	FactorTemporal Factor = "temporal"
)

// Breakdown holds the unweighted sub-score of every factor that applied.
// Location is absent when either side has no address.
type Breakdown map[Factor]float64

// ScoredCandidate is a candidate with its final score.
type ScoredCandidate struct {
	Candidate candidates.Candidate
	Score     float64
	Breakdown Breakdown
}

// AccountID is the candidate's owning account.
func (s ScoredCandidate) AccountID() int64 {
	return s.Candidate.Record.AccountID
}

type Engine struct {
	settings matching.Settings
	geo      *location.GeoScorer
	now      func() time.Time
}

type Option func(*Engine)

// WithClock replaces time.Now for temporal scoring.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithGeoScorer replaces the default geo scorer.
func WithGeoScorer(g *location.GeoScorer) Option {
	return func(e *Engine) { e.geo = g }
}

func NewEngine(settings matching.Settings, opts ...Option) *Engine {
	e := &Engine{
		settings: settings,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.geo == nil {
		e.geo = location.NewGeoScorer(settings, nil)
	}
	return e
}

// Score scores every candidate and returns them best first. Equal scores are
// ordered by account id ascending. MaxResults > 0 truncates the list.
func (e *Engine) Score(query *models.QueryProfile, cands []candidates.Candidate) []ScoredCandidate {
	now := e.now()
	out := make([]ScoredCandidate, 0, len(cands))
	for _, c := range cands {
		out = append(out, e.scoreOne(query, c, now))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].AccountID() < out[j].AccountID()
	})

	if e.settings.MaxResults > 0 && len(out) > e.settings.MaxResults {
		out = out[:e.settings.MaxResults]
	}
	return out
}

func (e *Engine) scoreOne(query *models.QueryProfile, c candidates.Candidate, now time.Time) ScoredCandidate {
	w := e.settings.Weights
	bd := make(Breakdown, 4)
	var total float64

	name := e.NameScore(query, c)
	bd[FactorName] = name
	if c.MatchType == models.MatchTypeExact {
		total += name * w.ExactName
	} else {
		total += name * w.FuzzyName
	}

	if query.Address != nil && c.Record.Address != nil {
		loc := e.geo.Score(query.Address, c.Record.Address)
		bd[FactorLocation] = loc
		total += loc * w.Location
	}

	phone := PhoneScore(query, c.Record)
	bd[FactorPhone] = phone
	total += phone * w.Phone

	temporal := TemporalScore(c.Record.CreatedAt, now)
	bd[FactorTemporal] = temporal
	total += temporal * w.Temporal

	return ScoredCandidate{Candidate: c, Score: clamp(total), Breakdown: bd}
}

// NameScore is 1 for exact-tier candidates, otherwise a first/last weighted
// string similarity with the last name counting more.
func (e *Engine) NameScore(query *models.QueryProfile, c candidates.Candidate) float64 {
	if c.MatchType == models.MatchTypeExact {
		return 1
	}
	return e.settings.FirstNameWeight*similarity.Similarity(query.FirstName, c.Record.FirstName) +
		e.settings.LastNameWeight*similarity.Similarity(query.LastName, c.Record.LastName)
}

// PhoneScore is reserved. Query profiles carry no phone number yet, so it is
// always 0 while keeping its slot in the weighted sum.
func PhoneScore(_ *models.QueryProfile, _ models.CandidateRecord) float64 {
	return 0
}

// TemporalScore favours recently created records.
func TemporalScore(createdAt, now time.Time) float64 {
	days := now.Sub(createdAt).Hours() / 24
	switch {
	case days <= 30:
		return 1
	case days <= 365:
		return 0.5
	case days <= 1825:
		return 0.1
	default:
		return 0
	}
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
