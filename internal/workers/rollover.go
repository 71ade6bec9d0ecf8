package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/habit-tracker/internal/database"
	"github.com/benvon/habit-tracker/internal/queue"
	"go.uber.org/zap"
)

// RolloverDelay is how long after local midnight the rollover runs.
const RolloverDelay = time.Minute

// UserLister lists the users that own at least one habit
type UserLister interface {
	ListUserIDsWithHabits(ctx context.Context) ([]int64, error)
}

var _ UserLister = (*database.HabitRepository)(nil)

// MidnightClock reports the next local midnight
type MidnightClock interface {
	NextMidnight() time.Time
}

// RolloverScheduler enqueues a daily_rollover job per user after each local
// midnight so stats snapshots for the new day are computed ahead of requests.
type RolloverScheduler struct {
	jobQueue queue.Enqueuer
	users    UserLister
	clock    MidnightClock
	logger   *zap.Logger
	after    func(time.Duration) <-chan time.Time
}

// NewRolloverScheduler creates a rollover scheduler
func NewRolloverScheduler(jobQueue queue.Enqueuer, users UserLister, clock MidnightClock, logger *zap.Logger) *RolloverScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RolloverScheduler{
		jobQueue: jobQueue,
		users:    users,
		clock:    clock,
		logger:   logger,
		after:    time.After,
	}
}

// ScheduleRolloverJobs enqueues a rollover job for every user with habits.
// A job not picked up before the following midnight expires.
func (s *RolloverScheduler) ScheduleRolloverJobs(ctx context.Context) (int, error) {
	userIDs, err := s.users.ListUserIDsWithHabits(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	notAfter := s.clock.NextMidnight()
	scheduled := 0
	for _, userID := range userIDs {
		job := queue.NewJob(queue.JobTypeDailyRollover, userID)
		job.NotAfter = &notAfter
		if err := s.jobQueue.Enqueue(ctx, job); err != nil {
			s.logger.Warn("failed_to_schedule_rollover_job",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			continue
		}
		scheduled++
	}

	s.logger.Info("scheduled_rollover_jobs",
		zap.Int("user_count", len(userIDs)),
		zap.Int("scheduled", scheduled),
		zap.Time("expires_at", notAfter),
	)
	return scheduled, nil
}

// Run schedules rollover jobs shortly after every local midnight until ctx
// is cancelled.
func (s *RolloverScheduler) Run(ctx context.Context) error {
	for {
		wait := time.Until(s.clock.NextMidnight()) + RolloverDelay
		s.logger.Debug("rollover_scheduler_waiting", zap.Duration("wait", wait))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.after(wait):
			if _, err := s.ScheduleRolloverJobs(ctx); err != nil {
				s.logger.Error("rollover_scheduling_failed", zap.Error(err))
			}
		}
	}
}
