package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dukerupert/agrimart/internal/jobs"
)

var _ jobs.Store = (*Store)(nil)

type jobDoc struct {
	ID          string     `bson:"_id"`
	Type        string     `bson:"type"`
	Payload     string     `bson:"payload"`
	Status      string     `bson:"status"`
	Attempts    int        `bson:"attempts"`
	MaxAttempts int        `bson:"maxAttempts"`
	LastError   string     `bson:"lastError"`
	RunAt       time.Time  `bson:"runAt"`
	StartedAt   *time.Time `bson:"startedAt,omitempty"`
	CompletedAt *time.Time `bson:"completedAt,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt"`
}

func (d jobDoc) toJob() *jobs.Job {
	return &jobs.Job{
		ID: d.ID, Type: d.Type, Payload: []byte(d.Payload), Status: d.Status,
		Attempts: d.Attempts, MaxAttempts: d.MaxAttempts, LastError: d.LastError,
		RunAt: d.RunAt, StartedAt: d.StartedAt, CompletedAt: d.CompletedAt, CreatedAt: d.CreatedAt,
	}
}

func (s *Store) Enqueue(ctx context.Context, job *jobs.Job) error {
	now := time.Now().UTC()
	job.ID = newID()
	job.Status = jobs.StatusPending
	job.CreatedAt = now
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = jobs.DefaultMaxAttempts
	}
	if job.RunAt.IsZero() {
		job.RunAt = now
	}

	_, err := s.col(colJobs).InsertOne(ctx, jobDoc{
		ID: job.ID, Type: job.Type, Payload: string(job.Payload), Status: job.Status,
		MaxAttempts: job.MaxAttempts, RunAt: job.RunAt, CreatedAt: now,
	})
	return storeErr(err, "job.enqueue", "failed to enqueue job")
}

// Claim relies on FindOneAndUpdate being atomic per document.
func (s *Store) Claim(ctx context.Context) (*jobs.Job, error) {
	now := time.Now().UTC()

	var doc jobDoc
	err := s.col(colJobs).FindOneAndUpdate(ctx,
		bson.M{"status": jobs.StatusPending, "runAt": bson.M{"$lte": now}},
		bson.M{
			"$set": bson.M{"status": jobs.StatusRunning, "startedAt": now},
			"$inc": bson.M{"attempts": 1},
		},
		options.FindOneAndUpdate().
			SetSort(bson.D{{Key: "runAt", Value: 1}}).
			SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, jobs.ErrNoJob
	}
	if err != nil {
		return nil, storeErr(err, "job.claim", "failed to claim job")
	}
	return doc.toJob(), nil
}

func (s *Store) Complete(ctx context.Context, id string) error {
	_, err := s.col(colJobs).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status": jobs.StatusCompleted, "completedAt": time.Now().UTC(),
	}})
	return storeErr(err, "job.complete", "failed to complete job")
}

// Fail uses an update pipeline so the attempts check and the status change
// happen in one write.
func (s *Store) Fail(ctx context.Context, id, errMsg string, retryAt time.Time) error {
	exhausted := bson.M{"$gte": bson.A{"$attempts", "$maxAttempts"}}
	_, err := s.col(colJobs).UpdateOne(ctx, bson.M{"_id": id}, mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"lastError": errMsg,
			"status":    bson.M{"$cond": bson.A{exhausted, jobs.StatusFailed, jobs.StatusPending}},
			"runAt":     bson.M{"$cond": bson.A{exhausted, "$runAt", retryAt.UTC()}},
		}}},
	})
	return storeErr(err, "job.fail", "failed to record job failure")
}

func (s *Store) RequeueStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.col(colJobs).UpdateMany(ctx,
		bson.M{"status": jobs.StatusRunning, "startedAt": bson.M{"$lt": cutoff}},
		bson.M{"$set": bson.M{"status": jobs.StatusPending, "runAt": time.Now().UTC()}})
	if err != nil {
		return 0, storeErr(err, "job.requeue_stale", "failed to requeue stale jobs")
	}
	return res.ModifiedCount, nil
}
