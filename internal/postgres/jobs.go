package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/agrimart/internal/jobs"
)

var _ jobs.Store = (*DB)(nil)

const jobColumns = `id::text, job_type, payload, status, attempts, max_attempts, last_error,
	run_at, started_at, completed_at, created_at`

func (db *DB) Enqueue(ctx context.Context, job *jobs.Job) error {
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = jobs.DefaultMaxAttempts
	}
	if job.RunAt.IsZero() {
		job.RunAt = time.Now()
	}
	job.Status = jobs.StatusPending

	err := db.pool.QueryRow(ctx, `
		INSERT INTO jobs (job_type, payload, max_attempts, run_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, created_at`,
		job.Type, []byte(job.Payload), job.MaxAttempts, job.RunAt,
	).Scan(&job.ID, &job.CreatedAt)
	return storeErr(err, "job.enqueue", "failed to enqueue job")
}

// Claim uses SKIP LOCKED so concurrent workers never take the same row.
func (db *DB) Claim(ctx context.Context) (*jobs.Job, error) {
	var (
		j       jobs.Job
		payload []byte
	)
	err := db.pool.QueryRow(ctx, `
		UPDATE jobs SET status = 'running', attempts = attempts + 1,
			started_at = NOW(), updated_at = NOW()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending' AND run_at <= NOW()
			ORDER BY run_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns,
	).Scan(&j.ID, &j.Type, &payload, &j.Status, &j.Attempts, &j.MaxAttempts, &j.LastError,
		&j.RunAt, &j.StartedAt, &j.CompletedAt, &j.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, jobs.ErrNoJob
	}
	if err != nil {
		return nil, storeErr(err, "job.claim", "failed to claim job")
	}
	j.Payload = payload
	return &j, nil
}

func (db *DB) Complete(ctx context.Context, id string) error {
	_, err := db.pool.Exec(ctx, `
		UPDATE jobs SET status = 'completed', completed_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id)
	return storeErr(err, "job.complete", "failed to complete job")
}

func (db *DB) Fail(ctx context.Context, id, errMsg string, retryAt time.Time) error {
	_, err := db.pool.Exec(ctx, `
		UPDATE jobs SET
			status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
			run_at = CASE WHEN attempts >= max_attempts THEN run_at ELSE $3 END,
			last_error = $2,
			updated_at = NOW()
		WHERE id = $1`, id, errMsg, retryAt)
	return storeErr(err, "job.fail", "failed to record job failure")
}

func (db *DB) RequeueStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.pool.Exec(ctx, `
		UPDATE jobs SET status = 'pending', run_at = NOW(), updated_at = NOW()
		WHERE status = 'running' AND started_at < $1`, cutoff)
	if err != nil {
		return 0, storeErr(err, "job.requeue_stale", "failed to requeue stale jobs")
	}
	return tag.RowsAffected(), nil
}
