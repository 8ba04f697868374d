package models

import "time"

// MatchType records which retrieval tier produced a candidate.
type MatchType string

const (
	MatchTypeExact   MatchType = "exact"
	MatchTypeFuzzy   MatchType = "fuzzy"
	MatchTypePartial MatchType = "partial"
)

// MatchStatus mirrors the integer match_status column on search_profiles.
type MatchStatus int

const (
	MatchStatusPending MatchStatus = iota
	MatchStatusProcessing
	MatchStatusCompleted
	MatchStatusFailed
)

func (s MatchStatus) String() string {
	switch s {
	case MatchStatusPending:
		return "pending"
	case MatchStatusProcessing:
		return "processing"
	case MatchStatusCompleted:
		return "completed"
	case MatchStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MatchResult is one persisted (query profile, candidate account) outcome.
// SimilarityScore is always in [0.0, 1.0].
type MatchResult struct {
	ID              int64     `json:"id,omitempty"`
	QueryProfileID  int64     `json:"queryProfileId"`
	MatchedUserID   int64     `json:"matchedUserId"`
	SimilarityScore float64   `json:"similarityScore"`
	IsVerified      bool      `json:"isVerified"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
