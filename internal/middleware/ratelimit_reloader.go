package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/benvon/habit-tracker/internal/database"
	"github.com/benvon/habit-tracker/internal/models"
	"github.com/benvon/habit-tracker/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// DefaultRatelimitRate is used when no rate is stored in the database.
const DefaultRatelimitRate = "20-S"

// RatelimitConfigStore loads and saves the runtime rate limit setting
type RatelimitConfigStore interface {
	Get(ctx context.Context) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

var _ RatelimitConfigStore = (*database.RatelimitConfigRepository)(nil)

// NewRedisLimiterStore creates the shared counter store for rate limiting.
func NewRedisLimiterStore(client *redis.Client) (limiter.Store, error) {
	store, err := redisstore.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:          "habit_ratelimit",
		CleanUpInterval: limiter.DefaultCleanUpInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit store: %w", err)
	}
	return store, nil
}

// RateLimitReloader wraps ulule/limiter and periodically reloads the rate
// from the database. One reloader may guard any number of routers; they
// share the counters in store.
type RateLimitReloader struct {
	store       limiter.Store
	repo        RatelimitConfigStore
	defaultRate string
	log         *zap.Logger
	interval    time.Duration
	initOnce    sync.Once
	mu          sync.RWMutex
	current     *stdlibmw.Middleware
	rate        string
}

// NewRateLimitReloader creates a rate limit middleware that loads config from the DB and hot-reloads it.
func NewRateLimitReloader(store limiter.Store, repo RatelimitConfigStore, defaultRate string, log *zap.Logger, reloadInterval time.Duration) *RateLimitReloader {
	if defaultRate == "" {
		defaultRate = DefaultRatelimitRate
	}
	return &RateLimitReloader{
		store:       store,
		repo:        repo,
		defaultRate: defaultRate,
		log:         log,
		interval:    reloadInterval,
	}
}

// Middleware returns the rate limiting middleware. The stored rate is read
// the first time it is called and on every reload after that.
func (r *RateLimitReloader) Middleware() func(http.Handler) http.Handler {
	r.initOnce.Do(func() { r.load(context.Background()) })
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			r.mu.RLock()
			mw := r.current
			r.mu.RUnlock()
			if mw == nil {
				next.ServeHTTP(w, req)
				return
			}
			mw.Handler(next).ServeHTTP(w, req)
		})
	}
}

// Start runs the reload loop until ctx is cancelled.
func (r *RateLimitReloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.load(ctx)
		}
	}
}

// Rate returns the rate currently enforced
func (r *RateLimitReloader) Rate() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rate
}

func (r *RateLimitReloader) load(ctx context.Context) {
	rateStr := r.defaultRate
	cfg, err := r.repo.Get(ctx)
	switch {
	case err != nil:
		r.log.Warn("failed_to_load_ratelimit_config_from_db_using_default",
			zap.Error(err),
			zap.String("default_rate", r.defaultRate),
		)
	case cfg != nil && cfg.Rate != "":
		rateStr = cfg.Rate
	default:
		if err := r.repo.Set(ctx, &models.RatelimitConfig{Rate: r.defaultRate}); err != nil {
			r.log.Error("failed_to_save_default_ratelimit_config",
				zap.Error(err),
				zap.String("default_rate", r.defaultRate),
			)
		}
	}

	if rateStr == r.Rate() {
		return
	}

	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		r.log.Error("failed_to_parse_rate_limit_using_default",
			zap.Error(err),
			zap.String("rate_str", rateStr),
		)
		rateStr = r.defaultRate
		if rate, err = limiter.NewRateFromFormatted(rateStr); err != nil {
			r.log.Error("failed_to_parse_default_rate_limit", zap.Error(err))
			return
		}
	}

	mw := stdlibmw.NewMiddleware(limiter.New(r.store, rate),
		stdlibmw.WithKeyGetter(request.ClientIP),
		stdlibmw.WithLimitReachedHandler(func(w http.ResponseWriter, req *http.Request) {
			writeError(w, req, http.StatusTooManyRequests, "rate_limited", "Too many requests")
		}),
		stdlibmw.WithErrorHandler(func(w http.ResponseWriter, req *http.Request, err error) {
			r.log.Error("rate_limiter_store_failed", zap.Error(err))
			writeError(w, req, http.StatusInternalServerError, "internal_error", "Rate limiter unavailable")
		}),
	)

	r.mu.Lock()
	r.current = mw
	r.rate = rateStr
	r.mu.Unlock()

	r.log.Info("ratelimit_config_loaded", zap.String("rate", rateStr))
}
