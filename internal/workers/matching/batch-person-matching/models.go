package batchpersonmatching

type Input struct {
	BatchSize int `json:"batchSize,omitempty"`
}

type Output struct {
	ProfilesFound      int     `json:"profilesFound"`
	ProfilesDispatched int     `json:"profilesDispatched"`
	FailedProfileIDs   []int64 `json:"failedProfileIds,omitempty"`
}
