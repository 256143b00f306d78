package memory

import (
	"context"
	"time"

	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/jobs"
)

var _ jobs.Store = (*Store)(nil)

func (s *Store) Enqueue(ctx context.Context, job *jobs.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job.ID = newID()
	job.CreatedAt = s.now()
	if job.Status == "" {
		job.Status = jobs.StatusPending
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = jobs.DefaultMaxAttempts
	}
	if job.RunAt.IsZero() {
		job.RunAt = job.CreatedAt
	}
	s.jobs[job.ID] = copyJob(job)
	return nil
}

func (s *Store) Claim(ctx context.Context) (*jobs.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var next *jobs.Job
	for _, j := range s.jobs {
		if j.Status != jobs.StatusPending || j.RunAt.After(now) {
			continue
		}
		if next == nil || j.RunAt.Before(next.RunAt) {
			next = j
		}
	}
	if next == nil {
		return nil, jobs.ErrNoJob
	}

	started := s.now()
	next.Status = jobs.StatusRunning
	next.Attempts++
	next.StartedAt = &started
	return copyJob(next), nil
}

func (s *Store) Complete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return domain.NotFound("job.complete", "job", id)
	}
	done := s.now()
	j.Status = jobs.StatusCompleted
	j.CompletedAt = &done
	return nil
}

func (s *Store) Fail(ctx context.Context, id, errMsg string, retryAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return domain.NotFound("job.fail", "job", id)
	}
	j.LastError = errMsg
	if j.Attempts >= j.MaxAttempts {
		j.Status = jobs.StatusFailed
		return nil
	}
	j.Status = jobs.StatusPending
	j.RunAt = retryAt
	return nil
}

func (s *Store) RequeueStale(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, j := range s.jobs {
		if j.Status == jobs.StatusRunning && j.StartedAt != nil && j.StartedAt.Before(cutoff) {
			j.Status = jobs.StatusPending
			n++
		}
	}
	return n, nil
}

// Jobs returns a snapshot of every job, for tests and diagnostics.
func (s *Store) Jobs() []*jobs.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*jobs.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, copyJob(j))
	}
	return out
}
