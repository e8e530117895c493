// Package jobs runs the background work of the platform on Asynq: the
// nightly sweep that moves expired evidence requests into the archive
// and the retention sweep over consumed idempotency keys.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/watchplus/watchplus/internal/observability"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskArchiveExpired sweeps expired evidence requests into the archive.
	TaskArchiveExpired = "requests:archive_expired"
	// TaskIdempotencyCleanup drops idempotency keys past retention.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// ArchiveExpiredPayload carries the cutoff for the sweep. A zero Before
// means "now at execution time" so scheduled tasks stay reusable.
type ArchiveExpiredPayload struct {
	Before time.Time `json:"before,omitzero"`
}

// NewArchiveExpiredTask constructs an Asynq task.
func NewArchiveExpiredTask(payload ArchiveExpiredPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskArchiveExpired, data), nil
}

// Archiver is the slice of the reports service the sweep needs.
type Archiver interface {
	ArchiveExpired(ctx context.Context, now time.Time) (int, error)
}

// NewArchiveExpiredHandler builds the handler for TaskArchiveExpired.
func NewArchiveExpiredHandler(archiver Archiver, logger *slog.Logger, metrics *observability.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ArchiveExpiredPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		cutoff := payload.Before
		if cutoff.IsZero() {
			cutoff = time.Now().UTC()
		}
		count, err := archiver.ArchiveExpired(ctx, cutoff)
		if err != nil {
			logger.Error("archive expired requests", slog.Any("error", err))
			metrics.ObserveJobRun(TaskArchiveExpired, "error")
			return err
		}
		logger.Info("archived expired requests", slog.Int("count", count))
		metrics.ObserveJobRun(TaskArchiveExpired, "success")
		metrics.AddArchivedRequests(count)
		return nil
	}
}

// IdempotencyCleanupPayload carries the retention window for the sweep.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask constructs an Asynq task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// KeyJanitor is the slice of the idempotency store the cleanup needs.
type KeyJanitor interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// NewIdempotencyCleanupHandler builds the handler for TaskIdempotencyCleanup.
func NewIdempotencyCleanupHandler(janitor KeyJanitor, logger *slog.Logger, metrics *observability.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload IdempotencyCleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		retention := payload.Retention
		if retention <= 0 {
			retention = 48 * time.Hour
		}
		if err := janitor.Cleanup(ctx, retention); err != nil {
			logger.Error("cleanup idempotency keys", slog.Any("error", err))
			metrics.ObserveJobRun(TaskIdempotencyCleanup, "error")
			return err
		}
		logger.Info("cleaned up idempotency keys", slog.Duration("retention", retention))
		metrics.ObserveJobRun(TaskIdempotencyCleanup, "success")
		return nil
	}
}
