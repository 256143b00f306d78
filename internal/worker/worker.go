package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/agrimart/internal/jobs"
	"github.com/dukerupert/agrimart/internal/telemetry"
)

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance in logs
	WorkerID string

	// PollInterval is how often to check for new jobs
	PollInterval time.Duration

	// MaxConcurrency is the maximum number of jobs to process concurrently
	MaxConcurrency int

	// JobTimeout bounds a single attempt
	JobTimeout time.Duration

	// RetryBase is the first retry delay; later delays double up to RetryCap
	RetryBase time.Duration
	RetryCap  time.Duration

	// StaleAfter is how long a job may stay running before it is requeued
	StaleAfter time.Duration
}

// Handler processes one job.
type Handler func(ctx context.Context, job *jobs.Job) error

// Worker processes background jobs
type Worker struct {
	config   Config
	store    jobs.Store
	handlers map[string]Handler
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewWorker creates a new background job worker
func NewWorker(store jobs.Store, config Config, logger *slog.Logger) *Worker {
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 5
	}
	if config.JobTimeout == 0 {
		config.JobTimeout = 30 * time.Second
	}
	if config.RetryBase == 0 {
		config.RetryBase = 5 * time.Second
	}
	if config.RetryCap == 0 {
		config.RetryCap = 10 * time.Minute
	}
	if config.StaleAfter == 0 {
		config.StaleAfter = 10 * time.Minute
	}

	return &Worker{
		config:   config,
		store:    store,
		handlers: make(map[string]Handler),
		logger:   logger.With("worker_id", config.WorkerID),
	}
}

// Register routes jobTypes to h. Call before Start.
func (w *Worker) Register(h Handler, jobTypes ...string) {
	for _, t := range jobTypes {
		w.handlers[t] = h
	}
}

// RegisterEmailJobs wires the email job types.
func (w *Worker) RegisterEmailJobs(deps jobs.EmailDeps) {
	w.Register(func(ctx context.Context, job *jobs.Job) error {
		return jobs.ProcessEmailJob(ctx, job, deps)
	}, jobs.JobTypeOrderConfirmation, jobs.JobTypeShippingNotification)
}

// Start processes jobs until ctx is cancelled, then waits for in-flight
// jobs to finish.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting",
		"poll_interval", w.config.PollInterval,
		"max_concurrency", w.config.MaxConcurrency,
	)

	jobs.RequeueStale(ctx, w.store, w.config.StaleAfter, w.logger)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	staleTicker := time.NewTicker(w.config.StaleAfter)
	defer staleTicker.Stop()

	sem := make(chan struct{}, w.config.MaxConcurrency)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down")
			w.wg.Wait()
			return ctx.Err()

		case <-staleTicker.C:
			jobs.RequeueStale(ctx, w.store, w.config.StaleAfter, w.logger)

		case <-ticker.C:
			w.poll(ctx, sem)
		}
	}
}

// poll claims due jobs until none remain or the semaphore is full.
func (w *Worker) poll(ctx context.Context, sem chan struct{}) {
	for {
		select {
		case sem <- struct{}{}:
		default:
			return
		}

		job, err := w.store.Claim(ctx)
		if err != nil {
			<-sem
			if !errors.Is(err, jobs.ErrNoJob) && ctx.Err() == nil {
				w.logger.Error("failed to claim job", "error", err)
			}
			return
		}

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer func() { <-sem }()
			w.process(context.WithoutCancel(ctx), job)
		}()
	}
}

// RunOnce claims and processes at most one job synchronously. It reports
// whether a job was found.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.Claim(ctx)
	if errors.Is(err, jobs.ErrNoJob) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	w.process(ctx, job)
	return true, nil
}

func (w *Worker) process(ctx context.Context, job *jobs.Job) {
	logger := w.logger.With("job_id", job.ID, "job_type", job.Type, "attempt", job.Attempts)
	logger.Info("processing job")

	started := time.Now()
	err := w.run(ctx, job)
	telemetry.Business.RecordJob(job.Type, started, err)
	if err == nil {
		if err := w.store.Complete(ctx, job.ID); err != nil {
			logger.Error("failed to mark job completed", "error", err)
			return
		}
		logger.Info("job completed")
		return
	}

	retryAt := time.Now().Add(w.retryDelay(job.Attempts))
	if job.Attempts >= job.MaxAttempts {
		logger.Error("job failed permanently", "error", err)
	} else {
		logger.Warn("job failed, will retry", "error", err, "retry_at", retryAt)
	}
	if ferr := w.store.Fail(ctx, job.ID, err.Error(), retryAt); ferr != nil {
		logger.Error("failed to record job failure", "error", ferr)
	}
}

func (w *Worker) run(ctx context.Context, job *jobs.Job) (err error) {
	h, ok := w.handlers[job.Type]
	if !ok {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()
	return h(jobCtx, job)
}

// retryDelay is the exponential delay before attempt+1.
func (w *Worker) retryDelay(attempt int) time.Duration {
	b := retry.WithCappedDuration(w.config.RetryCap, retry.NewExponential(w.config.RetryBase))
	d := w.config.RetryBase
	for i := 0; i < attempt; i++ {
		next, stop := b.Next()
		if stop {
			break
		}
		d = next
	}
	return d
}
