package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benvon/habit-tracker/internal/queue"
)

type mockUserLister struct {
	ids []int64
	err error
}

func (m *mockUserLister) ListUserIDsWithHabits(context.Context) ([]int64, error) {
	return m.ids, m.err
}

type fixedMidnight time.Time

func (f fixedMidnight) NextMidnight() time.Time { return time.Time(f) }

func TestRolloverScheduler_ScheduleRolloverJobs(t *testing.T) {
	t.Parallel()

	midnight := time.Now().Add(3 * time.Hour).Truncate(time.Second)

	tests := []struct {
		name          string
		users         *mockUserLister
		enqueueErr    error
		expectError   bool
		wantScheduled int
	}{
		{
			name:          "one job per user",
			users:         &mockUserLister{ids: []int64{1, 2, 3}},
			wantScheduled: 3,
		},
		{
			name:          "no users",
			users:         &mockUserLister{},
			wantScheduled: 0,
		},
		{
			name:        "listing fails",
			users:       &mockUserLister{err: errors.New("db down")},
			expectError: true,
		},
		{
			name:          "enqueue failures are skipped",
			users:         &mockUserLister{ids: []int64{1, 2}},
			enqueueErr:    errors.New("broker gone"),
			wantScheduled: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			enqueuer := &mockEnqueuer{err: tt.enqueueErr}
			s := NewRolloverScheduler(enqueuer, tt.users, fixedMidnight(midnight), nil)

			got, err := s.ScheduleRolloverJobs(context.Background())
			if (err != nil) != tt.expectError {
				t.Fatalf("ScheduleRolloverJobs() error = %v, expectError %v", err, tt.expectError)
			}
			if got != tt.wantScheduled {
				t.Errorf("Expected %d scheduled, got %d", tt.wantScheduled, got)
			}
			for i, job := range enqueuer.jobs {
				if job.Type != queue.JobTypeDailyRollover {
					t.Errorf("Expected job type %s, got %s", queue.JobTypeDailyRollover, job.Type)
				}
				if job.UserID != tt.users.ids[i] {
					t.Errorf("Expected user %d, got %d", tt.users.ids[i], job.UserID)
				}
				if job.NotAfter == nil || !job.NotAfter.Equal(midnight) {
					t.Errorf("Expected NotAfter %v, got %v", midnight, job.NotAfter)
				}
			}
		})
	}
}

func TestRolloverScheduler_Run(t *testing.T) {
	t.Parallel()

	enqueuer := &mockEnqueuer{}
	s := NewRolloverScheduler(enqueuer, &mockUserLister{ids: []int64{9}}, fixedMidnight(time.Now().Add(time.Hour)), nil)

	ctx, cancel := context.WithCancel(context.Background())
	fired := make(chan time.Time)
	var waits []time.Duration
	s.after = func(d time.Duration) <-chan time.Time {
		waits = append(waits, d)
		if len(waits) > 1 {
			cancel()
		}
		return fired
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	fired <- time.Now()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}

	if len(enqueuer.jobs) != 1 {
		t.Errorf("Expected 1 rollover job, got %d", len(enqueuer.jobs))
	}
	if waits[0] < time.Hour || waits[0] > time.Hour+RolloverDelay {
		t.Errorf("Expected first wait just over an hour, got %v", waits[0])
	}
}
