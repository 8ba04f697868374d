package matching

import (
	"context"
	"fmt"
	"time"

	"matching-workers/internal/models"
)

// Availability says whether an optional retrieval capability could run.
type Availability int

const (
	Available Availability = iota
	Unavailable
)

func (a Availability) String() string {
	if a == Unavailable {
		return "unavailable"
	}
	return "available"
}

// FuzzyResult is returned by the fuzzy tier. When Availability is Unavailable
// Candidates is empty and Reason says why the capability is missing.
type FuzzyResult struct {
	Availability Availability
	Candidates   []models.CandidateRecord
	Reason       string
}

// FuzzyUnavailable builds the Unavailable branch of a FuzzyResult.
func FuzzyUnavailable(reason string) FuzzyResult {
	return FuzzyResult{Availability: Unavailable, Reason: reason}
}

// Err returns nil when the tier ran, otherwise an error wrapping
// ErrCapabilityUnavailable with the reason.
func (r FuzzyResult) Err() error {
	if r.Availability != Unavailable {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrCapabilityUnavailable, r.Reason)
}

// CandidateSource is the retrieval half of the data-access collaborator.
type CandidateSource interface {
	FindCandidatesExact(ctx context.Context, first, last string, excludeAccount int64) ([]models.CandidateRecord, error)
	FindCandidatesFuzzy(ctx context.Context, first, last string, excludeAccount int64, threshold float64) (FuzzyResult, error)
	FindCandidatesPartial(ctx context.Context, first, last string, excludeAccount int64, limit int) ([]models.CandidateRecord, error)
}

// MatchWriter is the persistence half of the data-access collaborator.
type MatchWriter interface {
	ClearMatches(ctx context.Context, queryProfileID int64) (int64, error)
	BulkInsertMatches(ctx context.Context, matches []models.MatchResult) (int, error)
}

// ProfileReader loads query profiles.
type ProfileReader interface {
	GetQueryProfile(ctx context.Context, id int64) (*models.QueryProfile, error)
}

// Store is the full data-access contract the orchestrator runs against.
type Store interface {
	ProfileReader
	CandidateSource
	MatchWriter
}

// StatusReporter is the optional observational hook around a run. Errors are
// logged by the caller and never change the outcome of the run.
type StatusReporter interface {
	MarkProcessing(ctx context.Context, queryProfileID int64) error
	MarkCompleted(ctx context.Context, queryProfileID int64, matchCount int, at time.Time) error
	MarkFailed(ctx context.Context, queryProfileID int64, cause error) error
}
