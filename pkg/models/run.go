package models

import "time"

// RunStatus represents the state of a background task run
type RunStatus string

const (
	RunRunning   RunStatus = "RUNNING"
	RunStopping  RunStatus = "STOPPING"
	RunCompleted RunStatus = "COMPLETED"
	RunStopped   RunStatus = "STOPPED"
)

// RunOptions configures one task run
type RunOptions struct {
	Count       int  `json:"count"`
	Concurrency int  `json:"concurrency"`
	UseProxy    bool `json:"useProxy"`
	AutoClose   bool `json:"autoClose"`
}

// Run is a snapshot of a task run and the results collected so far
type Run struct {
	ID         string         `json:"id"`
	Options    RunOptions     `json:"options"`
	Status     RunStatus      `json:"status"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Results    []WorkerResult `json:"results"`
}

// CreateRunRequest is the payload for starting a run over the API
type CreateRunRequest struct {
	Count       int   `json:"count"`
	Concurrency int   `json:"concurrency,omitempty"`
	UseProxy    *bool `json:"useProxy,omitempty"`
	AutoClose   *bool `json:"autoClose,omitempty"`
}
