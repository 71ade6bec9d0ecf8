package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/benvon/habit-tracker/internal/database"
	"github.com/benvon/habit-tracker/internal/models"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// CorsConfigStore loads the runtime CORS setting
type CorsConfigStore interface {
	Get(ctx context.Context) (*models.CorsConfig, error)
}

var _ CorsConfigStore = (*database.CorsConfigRepository)(nil)

// CORSReloader wraps rs/cors and periodically reloads CORS config from the database.
type CORSReloader struct {
	repo     CorsConfigStore
	fallback string // FRONTEND_URL
	log      *zap.Logger
	interval time.Duration
	initOnce sync.Once
	mu       sync.RWMutex
	current  *cors.Cors
	origins  []string
}

// NewCORSReloader creates a CORS middleware that loads config from the DB and hot-reloads it.
func NewCORSReloader(repo CorsConfigStore, frontendURLFallback string, log *zap.Logger, reloadInterval time.Duration) *CORSReloader {
	return &CORSReloader{
		repo:     repo,
		fallback: strings.TrimSpace(frontendURLFallback),
		log:      log,
		interval: reloadInterval,
	}
}

// Middleware returns the CORS middleware. The stored policy is read the
// first time it is called and on every reload after that.
func (r *CORSReloader) Middleware() func(http.Handler) http.Handler {
	r.initOnce.Do(func() { r.load(context.Background()) })
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			r.mu.RLock()
			c := r.current
			r.mu.RUnlock()
			c.ServeHTTP(w, req, next.ServeHTTP)
		})
	}
}

// Start runs the reload loop until ctx is cancelled.
func (r *CORSReloader) Start(ctx context.Context) {
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

// Origins returns the allowed origins currently in effect
func (r *CORSReloader) Origins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.origins)
}

func (r *CORSReloader) load(ctx context.Context) {
	// Session cookies need credentialed requests, so the fallback allows them.
	origins := models.SplitOrigins(r.fallback)
	allowCreds := true
	maxAge := 86400
	cfg, err := r.repo.Get(ctx)
	if err != nil {
		r.log.Warn("failed_to_load_cors_config_using_fallback", zap.Error(err))
	} else if cfg != nil {
		origins = cfg.Origins()
		allowCreds = cfg.AllowCredentials
		maxAge = cfg.MaxAge
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: allowCreds,
		MaxAge:           maxAge,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
	})

	r.mu.Lock()
	r.current = c
	r.origins = origins
	r.mu.Unlock()
}
