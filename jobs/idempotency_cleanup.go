package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TaskIdempotencyCleanup prunes expired edit-request idempotency keys.
	TaskIdempotencyCleanup = "inventory:idempotency_cleanup"
)

// IdempotencyCleanupPayload carries the retention window.
type IdempotencyCleanupPayload struct {
	Retain time.Duration `json:"retain"`
}

// NewIdempotencyCleanupTask builds a cleanup task.
func NewIdempotencyCleanupTask(retain time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{Retain: retain})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyPruner deletes keys older than a cutoff.
type IdempotencyPruner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyCleanupJob handles TaskIdempotencyCleanup.
type IdempotencyCleanupJob struct {
	Store   IdempotencyPruner
	Logger  *slog.Logger
	Default time.Duration
}

// Handle prunes keys past the payload retention, or Default when unset.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: store not configured")
	}
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retain := payload.Retain
	if retain <= 0 {
		retain = j.Default
	}
	if retain <= 0 {
		return asynq.SkipRetry
	}
	tracker := defaultJobMetrics.Track(TaskIdempotencyCleanup)
	err := j.Store.Cleanup(ctx, retain)
	if j.Logger != nil {
		if err != nil {
			j.Logger.Error("idempotency cleanup", slog.Any("error", err))
		} else {
			j.Logger.Info("idempotency keys pruned", slog.Duration("retain", retain))
		}
	}
	return tracker.End(err)
}
