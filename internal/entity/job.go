package entity

import "time"

const (
	EventReady    = "ready"
	EventProgress = "progress"
	EventDone     = "done"
)

// Event is one message pushed over a progress channel.
type Event struct {
	Name string
	Data any
}

type ProgressEvent struct {
	Done    int    `json:"done"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

type DoneEvent struct{}

// ExportRequest is the caller input of a download.
type ExportRequest struct {
	JobID     string    `json:"job_id"`
	Selection Selection `json:"selection"`
	Credentials
}

// Job is an in-flight export.
type Job struct {
	ID          string
	Credentials *Credentials
	Selection   Selection
	Total       int
	Done        int
	StartedAt   time.Time
}

type JobState string

const (
	JobStateRunning  JobState = "running"
	JobStateDone     JobState = "done"
	JobStateCanceled JobState = "canceled"
	JobStateFailed   JobState = "failed"
)

// JobStatus is the record kept by the job repository.
type JobStatus struct {
	ID         string    `json:"id"`
	State      JobState  `json:"state"`
	Done       int       `json:"done"`
	Total      int       `json:"total"`
	Files      int       `json:"files"`
	Failures   int       `json:"failures"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}
