package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"classifier_server/core/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis key prefixes for job tracking
const (
	jobKeyPrefix    = "job:"
	jobCancelSuffix = ":cancel"
)

// RedisJobTracker implements domain.JobTracker on Redis hashes. Both the
// API process and the workers read and write the same keys, so progress
// is visible while a job runs.
type RedisJobTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisJobTracker creates a new job tracker. Jobs expire after ttl so
// finished runs do not accumulate forever.
func NewRedisJobTracker(client *redis.Client, ttl time.Duration) *RedisJobTracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisJobTracker{client: client, ttl: ttl}
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

// Create stores a new job record.
func (t *RedisJobTracker) Create(ctx context.Context, job *domain.Job) error {
	if job.ID == "" {
		return errors.New("job id cannot be empty")
	}

	job.CreatedAt = time.Now()

	fields := map[string]any{
		"owner_id":   job.OwnerID.String(),
		"kind":       string(job.Kind),
		"status":     string(job.Status),
		"total":      job.Total,
		"processed":  job.Processed,
		"changed":    job.Changed,
		"failed":     job.Failed,
		"error":      job.Error,
		"created_at": job.CreatedAt.Format(time.RFC3339Nano),
	}

	key := jobKey(job.ID)
	pipe := t.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// Get retrieves a job. Returns nil when the job is unknown or expired.
func (t *RedisJobTracker) Get(ctx context.Context, id string) (*domain.Job, error) {
	fields, err := t.client.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	job := &domain.Job{
		ID:     id,
		Kind:   domain.JobKind(fields["kind"]),
		Status: domain.JobStatus(fields["status"]),
		Error:  fields["error"],
	}

	if ownerID, err := uuid.Parse(fields["owner_id"]); err == nil {
		job.OwnerID = ownerID
	}
	job.Total = atoi(fields["total"])
	job.Processed = atoi(fields["processed"])
	job.Changed = atoi(fields["changed"])
	job.Failed = atoi(fields["failed"])

	if ts, err := time.Parse(time.RFC3339Nano, fields["created_at"]); err == nil {
		job.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["started_at"]); err == nil {
		job.StartedAt = &ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["finished_at"]); err == nil {
		job.FinishedAt = &ts
	}

	return job, nil
}

// SetStatus transitions a job, stamping started_at / finished_at as the
// status implies.
func (t *RedisJobTracker) SetStatus(ctx context.Context, id string, status domain.JobStatus, errMsg string) error {
	fields := map[string]any{
		"status": string(status),
		"error":  errMsg,
	}

	now := time.Now().Format(time.RFC3339Nano)
	switch status {
	case domain.JobRunning:
		fields["started_at"] = now
	case domain.JobCompleted, domain.JobFailed, domain.JobCancelled:
		fields["finished_at"] = now
	}

	if err := t.client.HSet(ctx, jobKey(id), fields).Err(); err != nil {
		return fmt.Errorf("failed to set job status: %w", err)
	}

	return nil
}

// SetTotal records the total record count once a job has resolved its scope.
func (t *RedisJobTracker) SetTotal(ctx context.Context, id string, total int) error {
	if err := t.client.HSet(ctx, jobKey(id), "total", total).Err(); err != nil {
		return fmt.Errorf("failed to set job total: %w", err)
	}
	return nil
}

// AddProgress atomically bumps the progress counters.
func (t *RedisJobTracker) AddProgress(ctx context.Context, id string, processed, changed, failed int) error {
	key := jobKey(id)
	pipe := t.client.TxPipeline()
	if processed != 0 {
		pipe.HIncrBy(ctx, key, "processed", int64(processed))
	}
	if changed != 0 {
		pipe.HIncrBy(ctx, key, "changed", int64(changed))
	}
	if failed != 0 {
		pipe.HIncrBy(ctx, key, "failed", int64(failed))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add job progress: %w", err)
	}
	return nil
}

// RequestCancel flags a running job. Workers observe the flag at batch
// boundaries.
func (t *RedisJobTracker) RequestCancel(ctx context.Context, id string) error {
	key := jobKey(id) + jobCancelSuffix
	if err := t.client.Set(ctx, key, "1", t.ttl).Err(); err != nil {
		return fmt.Errorf("failed to request job cancel: %w", err)
	}
	return nil
}

// IsCancelRequested reports whether a cancel flag is set for the job.
func (t *RedisJobTracker) IsCancelRequested(ctx context.Context, id string) (bool, error) {
	n, err := t.client.Exists(ctx, jobKey(id)+jobCancelSuffix).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check job cancel flag: %w", err)
	}
	return n > 0, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

var _ domain.JobTracker = (*RedisJobTracker)(nil)
