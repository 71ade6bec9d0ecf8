package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeStatsRefresh recomputes and caches one user's stats after a change
	JobTypeStatsRefresh JobType = "stats_refresh"
	// JobTypeDailyRollover pre-warms one user's stats for a new day
	JobTypeDailyRollover JobType = "daily_rollover"
)

// DefaultMaxRetries is the retry budget of a new job
const DefaultMaxRetries = 3

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID  `json:"id"`
	Type       JobType    `json:"type"`
	UserID     int64      `json:"user_id"`
	NotBefore  *time.Time `json:"not_before,omitempty"` // nil = immediate
	NotAfter   *time.Time `json:"not_after,omitempty"`  // nil = no expiration
	CreatedAt  time.Time  `json:"created_at"`
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType, userID int64) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		UserID:     userID,
		CreatedAt:  time.Now(),
		MaxRetries: DefaultMaxRetries,
	}
}

// Delay sets NotBefore to d from now and returns the job
func (j *Job) Delay(d time.Duration) *Job {
	t := time.Now().Add(d)
	j.NotBefore = &t
	return j
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}
	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}

// RetryDelay is the backoff before the next attempt: base doubled for each
// retry already made, capped at max.
func (j *Job) RetryDelay(base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < j.RetryCount && d < max; i++ {
		d *= 2
	}
	return min(d, max)
}

// Retry returns a copy of the job for the next attempt, delayed by the backoff.
func (j *Job) Retry(base, max time.Duration) *Job {
	next := *j
	next.RetryCount = j.RetryCount + 1
	notBefore := time.Now().Add(j.RetryDelay(base, max))
	next.NotBefore = &notBefore
	return &next
}
