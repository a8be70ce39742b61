package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Background Jobs
// =============================================================================

// JobKind names a background job type carried on the stream.
type JobKind string

const (
	JobReclassify JobKind = "reclassify" // bulk re-run of the cascade
	JobApplyRule  JobKind = "apply_rule" // apply one rule across the mailbox
	JobMine       JobKind = "mine"       // suggestion mining pass
	JobClassify   JobKind = "classify"   // classify one newly ingested email
)

// JobStatus is the lifecycle state of a background job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Job is the tracked state of a background run. Progress counters update as
// batches complete.
type Job struct {
	ID      string    `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`
	Kind    JobKind   `json:"kind"`
	Status  JobStatus `json:"status"`

	Total     int `json:"total"`
	Processed int `json:"processed"`
	Changed   int `json:"changed"`
	Failed    int `json:"failed"`

	Error string `json:"error,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// JobTracker stores job state where both the API and the worker can see it.
type JobTracker interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	SetStatus(ctx context.Context, id string, status JobStatus, errMsg string) error
	SetTotal(ctx context.Context, id string, total int) error
	AddProgress(ctx context.Context, id string, processed, changed, failed int) error
	// RequestCancel flags a running job; workers observe the flag at batch
	// boundaries.
	RequestCancel(ctx context.Context, id string) error
	IsCancelRequested(ctx context.Context, id string) (bool, error)
}
