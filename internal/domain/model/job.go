package model

import "time"

type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCancelled JobStatus = "CANCELLED"
	// JobStatusStalled marks jobs found PENDING/RUNNING at process startup.
	// No worker survives a restart, so such jobs can never finish on their own.
	JobStatusStalled JobStatus = "STALLED"
)

// Terminal reports whether the status can never transition again.
// STALLED is terminal for that attempt (never auto-retried).
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled, JobStatusStalled:
		return true
	}
	return false
}

type JobType string

const JobTypeSimulation JobType = "SIMULATION"

// Job is a durable record of one background scientific model run.
type Job struct {
	ID         string
	Type       JobType
	Parameters map[string]string
	Status     JobStatus
	Result     map[string]string
	Logs       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewJob(id string, jobType JobType, params map[string]string) *Job {
	return &Job{
		ID:         id,
		Type:       jobType,
		Parameters: params,
		Status:     JobStatusPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
}
