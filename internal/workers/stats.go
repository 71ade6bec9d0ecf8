package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/habit-tracker/internal/models"
	"github.com/benvon/habit-tracker/internal/queue"
	"github.com/benvon/habit-tracker/internal/services/habits"
	"github.com/benvon/habit-tracker/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	// MaxInlineWait is the longest a worker holds a not-yet-due job before
	// handing it back to the queue.
	MaxInlineWait = 5 * time.Second

	retryBaseDelay = 2 * time.Second
	retryMaxDelay  = 5 * time.Minute
)

// StatsRefresher recomputes a user's cached stats
type StatsRefresher interface {
	RefreshStats(ctx context.Context, userID int64) (models.Stats, error)
}

var _ StatsRefresher = (*habits.Service)(nil)

// StatsWorker processes stats_refresh and daily_rollover jobs
type StatsWorker struct {
	refresher StatsRefresher
	jobQueue  queue.Enqueuer
	logger    *zap.Logger
}

// NewStatsWorker creates a stats worker. jobQueue is used for retries and may be nil.
func NewStatsWorker(refresher StatsRefresher, jobQueue queue.Enqueuer, logger *zap.Logger) *StatsWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsWorker{
		refresher: refresher,
		jobQueue:  jobQueue,
		logger:    logger,
	}
}

// ProcessJob processes a job based on its type and settles the message.
func (w *StatsWorker) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	ctx, span := telemetry.Tracer().Start(ctx, "worker.process_job")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", job.ID.String()),
		attribute.String("job.type", string(job.Type)),
		attribute.Int64("user.id", job.UserID),
		attribute.Int("job.retry_count", job.RetryCount),
	)

	if job.IsExpired() {
		w.logger.Info("job_expired",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
		)
		return msg.Nack(false)
	}

	if !job.ShouldProcess() {
		deferred, err := w.waitOrDefer(ctx, msg, job)
		if err != nil || deferred {
			return err
		}
	}

	switch job.Type {
	case queue.JobTypeStatsRefresh, queue.JobTypeDailyRollover:
		stats, err := w.refresher.RefreshStats(ctx, job.UserID)
		if err != nil {
			return w.handleJobError(ctx, msg, job, err)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		w.logger.Debug("stats_refreshed",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
			zap.Int64("user_id", job.UserID),
			zap.Int("current_streak", stats.CurrentStreak),
			zap.Int("active_habits", stats.ActiveHabits),
		)
		return nil

	default:
		if nackErr := msg.Nack(false); nackErr != nil {
			w.logger.Warn("failed_to_nack_unknown_job", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// waitOrDefer sleeps until a job's NotBefore when it is close. Otherwise it
// acks the message and re-enqueues the job so the queue holds the delay, and
// reports the job as deferred.
func (w *StatsWorker) waitOrDefer(ctx context.Context, msg queue.MessageInterface, job *queue.Job) (bool, error) {
	delay := time.Until(*job.NotBefore)
	if delay <= MaxInlineWait {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			if nackErr := msg.Nack(true); nackErr != nil {
				w.logger.Warn("failed_to_nack_job", zap.Error(nackErr))
			}
			return true, ctx.Err()
		case <-timer.C:
			return false, nil
		}
	}

	if w.jobQueue == nil {
		return true, msg.Nack(true)
	}
	if err := w.jobQueue.Enqueue(ctx, job); err != nil {
		if nackErr := msg.Nack(true); nackErr != nil {
			w.logger.Warn("failed_to_nack_job", zap.Error(nackErr))
		}
		return true, fmt.Errorf("failed to defer job: %w", err)
	}
	return true, msg.Ack()
}

// handleJobError re-enqueues a failed job with backoff while it has retries
// left and dead-letters it otherwise.
func (w *StatsWorker) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	if job.CanRetry() && w.jobQueue != nil {
		next := job.Retry(retryBaseDelay, retryMaxDelay)
		if enqueueErr := w.jobQueue.Enqueue(ctx, next); enqueueErr != nil {
			if nackErr := msg.Nack(true); nackErr != nil {
				w.logger.Warn("failed_to_nack_job", zap.Error(nackErr))
			}
			return fmt.Errorf("job failed, failed to re-enqueue: %w", enqueueErr)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			w.logger.Warn("failed_to_ack_retried_job", zap.Error(ackErr))
		}
		w.logger.Warn("job_failed_will_retry",
			zap.String("job_id", job.ID.String()),
			zap.Int("attempt", next.RetryCount),
			zap.Int("max_retries", job.MaxRetries),
			zap.Time("not_before", *next.NotBefore),
			zap.Error(err),
		)
		return fmt.Errorf("job failed (will retry): %w", err)
	}

	w.logger.Error("job_failed_sending_to_dlq",
		zap.String("job_id", job.ID.String()),
		zap.Int("retry_count", job.RetryCount),
		zap.Error(err),
	)
	if nackErr := msg.Nack(false); nackErr != nil {
		w.logger.Warn("failed_to_nack_job", zap.Error(nackErr))
	}
	return fmt.Errorf("job failed (max retries): %w", err)
}
