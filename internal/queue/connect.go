package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	connectAttempts     = 10
	connectInitialDelay = 2 * time.Second
	connectMaxDelay     = 30 * time.Second
)

// dialFunc opens a queue connection; swapped out in tests.
type dialFunc func(amqpURL string, logger *zap.Logger) (*RabbitMQQueue, error)

// Connect dials RabbitMQ, retrying with exponential backoff while the
// broker is still starting up.
func Connect(ctx context.Context, amqpURL string, logger *zap.Logger) (*RabbitMQQueue, error) {
	return connect(ctx, amqpURL, logger, NewRabbitMQQueue, time.After)
}

func connect(ctx context.Context, amqpURL string, logger *zap.Logger, dial dialFunc, after func(time.Duration) <-chan time.Time) (*RabbitMQQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	for attempt := 0; attempt < connectAttempts; attempt++ {
		q, err := dial(amqpURL, logger)
		if err == nil {
			logger.Info("connected_to_rabbitmq", zap.Int("attempt", attempt+1))
			return q, nil
		}
		lastErr = err

		delay := min(connectInitialDelay<<attempt, connectMaxDelay)
		logger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", connectAttempts),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-after(delay):
		}
	}
	return nil, fmt.Errorf("rabbitmq unreachable after %d attempts: %w", connectAttempts, lastErr)
}
