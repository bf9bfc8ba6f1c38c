package models

import "time"

// ResultStatus is the terminal outcome of one registration attempt
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultFailed  ResultStatus = "failed"
)

// WorkerResult is the only value that crosses the worker boundary.
// Index is the submission index; WindowSeq is the remote window sequence
// and is zero when the lookup failed.
type WorkerResult struct {
	Index      int          `json:"index"`
	WindowSeq  int          `json:"windowSeq,omitempty"`
	Status     ResultStatus `json:"status"`
	Phone      string       `json:"phone"`
	Password   string       `json:"password"`
	Nickname   string       `json:"nickname"`
	Email      string       `json:"email"`
	DOB        string       `json:"dob"`
	Region     string       `json:"region"`
	BrowserID  string       `json:"browserId,omitempty"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
}

// Succeeded reports whether the attempt completed verification
func (r WorkerResult) Succeeded() bool {
	return r.Status == ResultSuccess
}
