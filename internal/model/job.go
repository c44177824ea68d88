package model

import "time"

// JobStatus is the lifecycle of a queued unit of work for a Run.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusFailed    JobStatus = "failed"
	JobStatusSucceeded JobStatus = "succeeded"
)

// Job is a durable, claimable unit of work tied 1:1 to a non-terminal
// attempt at running a Run through the pipeline.
type Job struct {
	TenantID  TenantID
	ID        JobID
	RunID     RunID
	JobType   string
	Status    JobStatus
	Attempts  int
	LastError *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResearchJobType is the job_type used for the research-report pipeline,
// mirroring original_source's RESEARCH_JOB_TYPE constant.
const ResearchJobType = "research.run"
