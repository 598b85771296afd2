package runs

import "time"

type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	// StatusPartial means the run finished but some work items failed.
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Run is one execution of an ingestion job over a date window.
type Run struct {
	ID         string
	Job        string
	WindowFrom string
	WindowTo   string
	Status     Status
	Items      int
	Failed     int
	Inserted   int64
	Updated    int64
	Removed    int64
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}
