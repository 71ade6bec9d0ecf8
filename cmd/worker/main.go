package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/benvon/habit-tracker/internal/analytics"
	"github.com/benvon/habit-tracker/internal/cache"
	"github.com/benvon/habit-tracker/internal/config"
	"github.com/benvon/habit-tracker/internal/database"
	"github.com/benvon/habit-tracker/internal/logger"
	"github.com/benvon/habit-tracker/internal/queue"
	"github.com/benvon/habit-tracker/internal/services/habits"
	"github.com/benvon/habit-tracker/internal/telemetry"
	"github.com/benvon/habit-tracker/internal/workers"
	"go.uber.org/zap"
)

var version = "dev"

const (
	dlqGCInterval  = time.Hour
	dlqGCRetention = 24 * time.Hour
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.LoadCore()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag
	zapLogger, err := logger.NewProductionLogger(telemetry.ServiceWorker, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	if !cfg.AsyncStatsEnabled() {
		zapLogger.Fatal("rabbitmq_url_required_for_worker")
	}

	zapLogger.Info("starting_worker",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.String("timezone", cfg.Location.String()),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTELEnabled {
		tp, err := telemetry.InitTracer(ctx, telemetry.Options{
			ServiceName:    telemetry.ServiceWorker,
			ServiceVersion: version,
			Endpoint:       cfg.OTELEndpoint,
		})
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()

	redisClient, err := cache.Connect(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()

	jobQueue, err := queue.Connect(ctx, cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	clock := analytics.NewZoneClock(cfg.Location)
	habitRepo := database.NewHabitRepository(db)
	habitService := habits.NewService(
		habitRepo,
		database.NewLogRepository(db),
		clock,
		zapLogger,
		habits.WithStatsCache(cache.NewRedisStatsCache(redisClient, cfg.StatsCacheTTL)),
	)

	statsWorker := workers.NewStatsWorker(habitService, jobQueue, zapLogger)
	scheduler := workers.NewRolloverScheduler(jobQueue, habitRepo, clock, zapLogger)
	gc := queue.NewGarbageCollector(jobQueue, dlqGCInterval, dlqGCRetention, zapLogger)

	go func() {
		if err := scheduler.Run(ctx); err != nil && ctx.Err() == nil {
			zapLogger.Error("rollover_scheduler_stopped", zap.Error(err))
		}
	}()
	go func() {
		if err := gc.Start(ctx); err != nil && ctx.Err() == nil {
			zapLogger.Error("dlq_garbage_collector_stopped", zap.Error(err))
		}
	}()

	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming", zap.Error(err))
	}
	zapLogger.Info("worker_started")

	for {
		select {
		case <-ctx.Done():
			zapLogger.Info("worker_stopping")
			return
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			zapLogger.Error("queue_error", zap.Error(err))
		case msg, ok := <-msgChan:
			if !ok {
				zapLogger.Error("message_channel_closed")
				return
			}
			if err := statsWorker.ProcessJob(ctx, msg); err != nil {
				zapLogger.Warn("job_processing_failed",
					zap.String("job_id", msg.GetJob().ID.String()),
					zap.String("job_type", string(msg.GetJob().Type)),
					zap.Error(err),
				)
			}
		}
	}
}
