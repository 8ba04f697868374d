package runpersonmatching

type Input struct {
	QueryProfileID int64 `json:"queryProfileId"`
}

type Output struct {
	MatchesCreated      int    `json:"matchesCreated"`
	CandidatesEvaluated int    `json:"candidatesEvaluated"`
	RunID               string `json:"runId"`
	MatchStatus         string `json:"matchStatus"`
}
