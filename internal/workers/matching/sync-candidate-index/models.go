package synccandidateindex

const (
	ActionIndexed = "indexed"
	ActionDeleted = "deleted"
)

type Input struct {
	AccountID int64 `json:"accountId"`
}

type Output struct {
	AccountID int64  `json:"accountId"`
	Action    string `json:"action"`
}
