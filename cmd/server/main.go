package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/benvon/habit-tracker/internal/analytics"
	"github.com/benvon/habit-tracker/internal/cache"
	"github.com/benvon/habit-tracker/internal/config"
	"github.com/benvon/habit-tracker/internal/database"
	"github.com/benvon/habit-tracker/internal/handlers"
	"github.com/benvon/habit-tracker/internal/logger"
	"github.com/benvon/habit-tracker/internal/middleware"
	"github.com/benvon/habit-tracker/internal/queue"
	"github.com/benvon/habit-tracker/internal/services/auth"
	"github.com/benvon/habit-tracker/internal/services/habits"
	"github.com/benvon/habit-tracker/internal/telemetry"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// statsRefreshDebounce delays the background stats refresh after a change so
// a burst of toggles results in one recomputation.
const statsRefreshDebounce = 2 * time.Second

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag
	zapLogger, err := logger.NewProductionLogger(telemetry.ServiceAPI, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("timezone", cfg.Location.String()),
		zap.Bool("async_stats", cfg.AsyncStatsEnabled()),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracing := false
	if cfg.OTELEnabled {
		tp, err := telemetry.InitTracer(ctx, telemetry.Options{
			ServiceName:    telemetry.ServiceAPI,
			ServiceVersion: version,
			Endpoint:       cfg.OTELEndpoint,
		})
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			tracing = true
			zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
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
	zapLogger.Info("connected_to_database", zap.String("dialect", db.Dialect().Name()))

	migrator, err := database.NewMigrator(db)
	if err != nil {
		zapLogger.Fatal("failed_to_load_migrations", zap.Error(err))
	}
	applied, err := migrator.Up(ctx)
	if err != nil {
		zapLogger.Fatal("failed_to_apply_migrations", zap.Error(err))
	}
	zapLogger.Info("migrations_applied", zap.Int("count", applied))

	redisClient, err := cache.Connect(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	var jobQueue *queue.RabbitMQQueue
	if cfg.AsyncStatsEnabled() {
		jobQueue, err = queue.Connect(ctx, cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
		}
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
	}

	signer, err := auth.NewTokenSigner([]byte(cfg.SessionSecret))
	if err != nil {
		zapLogger.Fatal("failed_to_create_token_signer", zap.Error(err))
	}
	authService := auth.NewService(
		database.NewUserRepository(db),
		cache.NewRedisSessionStore(redisClient),
		signer,
		cfg.SessionTTL,
		zapLogger,
	)

	habitOpts := []habits.Option{
		habits.WithStatsCache(cache.NewRedisStatsCache(redisClient, cfg.StatsCacheTTL)),
	}
	if jobQueue != nil {
		habitOpts = append(habitOpts, habits.WithChangeHook(statsRefreshHook(jobQueue, zapLogger)))
	}
	habitService := habits.NewService(
		database.NewHabitRepository(db),
		database.NewLogRepository(db),
		analytics.NewZoneClock(cfg.Location),
		zapLogger,
		habitOpts...,
	)

	limiterStore, err := middleware.NewRedisLimiterStore(redisClient)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_store", zap.Error(err))
	}
	rateLimitReloader := middleware.NewRateLimitReloader(limiterStore, database.NewRatelimitConfigRepository(db), "", zapLogger, time.Minute)
	corsReloader := middleware.NewCORSReloader(database.NewCorsConfigRepository(db), cfg.FrontendURL, zapLogger, time.Minute)

	probes := map[string]handlers.Pinger{
		"database": handlers.PingFunc(db.PingContext),
		"redis": handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}),
	}
	if jobQueue != nil {
		probes["queue"] = handlers.PingFunc(jobQueue.HealthCheck)
	}

	router := newRouter(routerDeps{
		Habits:      habitService,
		Accounts:    authService,
		Profiles:    authService,
		Authn:       authService,
		Cookies:     middleware.SessionCookies{Secure: cfg.SecureCookies},
		CORS:        corsReloader,
		RateLimit:   rateLimitReloader,
		Health:      handlers.NewHealthChecker(probes),
		OpenAPIPath: cfg.OpenAPIPath,
		Version:     version,
		EnableHSTS:  cfg.EnableHSTS,
		Tracing:     tracing,
		Logger:      zapLogger,
	})

	go corsReloader.Start(ctx)
	go rateLimitReloader.Start(ctx)

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   requestTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	serveErr := make(chan error, 1)
	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		zapLogger.Info("server_shutting_down")
	case err := <-serveErr:
		zapLogger.Error("server_failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}
	zapLogger.Info("server_exited")
}

// statsRefreshHook enqueues a debounced stats_refresh job after each change.
// Enqueue failures are logged; the synchronous read path recomputes stats anyway.
func statsRefreshHook(q queue.Enqueuer, log *zap.Logger) habits.ChangeHook {
	return func(ctx context.Context, userID int64) {
		job := queue.NewJob(queue.JobTypeStatsRefresh, userID).Delay(statsRefreshDebounce)
		if err := q.Enqueue(ctx, job); err != nil {
			log.Warn("failed_to_enqueue_stats_refresh",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			return
		}
		log.Debug("enqueued_stats_refresh",
			zap.Int64("user_id", userID),
			zap.Duration("debounce", statsRefreshDebounce),
		)
	}
}
