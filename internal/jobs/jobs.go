// Package jobs defines background job records, their store contract, and
// the enqueue and process functions for each job type.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Job status values.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// DefaultMaxAttempts bounds delivery attempts for a job.
const DefaultMaxAttempts = 5

// ErrNoJob is returned by Claim when nothing is due.
var ErrNoJob = errors.New("jobs: no job available")

// Job is a unit of deferred work.
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
	LastError   string          `json:"lastError,omitempty"`
	RunAt       time.Time       `json:"runAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Store persists the job queue.
type Store interface {
	// Enqueue inserts job as pending, filling ID and CreatedAt.
	Enqueue(ctx context.Context, job *Job) error

	// Claim atomically moves the oldest due pending job to running and
	// increments its attempt count. Returns ErrNoJob when none is due.
	Claim(ctx context.Context) (*Job, error)

	Complete(ctx context.Context, id string) error

	// Fail records errMsg. The job returns to pending at retryAt while
	// attempts remain, and is marked failed otherwise.
	Fail(ctx context.Context, id, errMsg string, retryAt time.Time) error

	// RequeueStale returns running jobs started before cutoff to pending.
	RequeueStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// newJob marshals payload into a pending job due now.
func newJob(jobType string, payload any) (*Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Job{
		Type:        jobType,
		Payload:     data,
		Status:      StatusPending,
		MaxAttempts: DefaultMaxAttempts,
		RunAt:       time.Now(),
	}, nil
}
