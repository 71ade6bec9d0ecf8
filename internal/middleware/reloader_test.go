package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/benvon/habit-tracker/internal/models"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

type fakeRatelimitStore struct {
	mu    sync.Mutex
	cfg   *models.RatelimitConfig
	err   error
	saved []string
}

func (f *fakeRatelimitStore) Get(context.Context) (*models.RatelimitConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg, f.err
}

func (f *fakeRatelimitStore) Set(_ context.Context, c *models.RatelimitConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, c.Rate)
	f.cfg = c
	return nil
}

func serve(h http.Handler, ip string) int {
	req := httptest.NewRequest("GET", "/api/v1/habits", nil)
	req.Header.Set("X-Forwarded-For", ip)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitReloader_SavesDefaultWhenEmpty(t *testing.T) {
	t.Parallel()

	repo := &fakeRatelimitStore{}
	r := NewRateLimitReloader(memory.NewStore(), repo, "", zap.NewNop(), 0)
	r.Middleware()(okHandler())

	if r.Rate() != DefaultRatelimitRate {
		t.Errorf("Expected rate %s, got %s", DefaultRatelimitRate, r.Rate())
	}
	if len(repo.saved) != 1 || repo.saved[0] != DefaultRatelimitRate {
		t.Errorf("Expected default to be saved once, got %v", repo.saved)
	}
}

func TestRateLimitReloader_Enforces(t *testing.T) {
	t.Parallel()

	repo := &fakeRatelimitStore{cfg: &models.RatelimitConfig{Rate: "2-M"}}
	r := NewRateLimitReloader(memory.NewStore(), repo, "", zap.NewNop(), 0)
	h := r.Middleware()(okHandler())

	for i := 0; i < 2; i++ {
		if code := serve(h, "198.51.100.1"); code != http.StatusOK {
			t.Fatalf("Request %d: expected 200, got %d", i+1, code)
		}
	}
	if code := serve(h, "198.51.100.1"); code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 after limit, got %d", code)
	}
	if code := serve(h, "198.51.100.2"); code != http.StatusOK {
		t.Errorf("Expected other client to pass, got %d", code)
	}
}

func TestRateLimitReloader_Reload(t *testing.T) {
	t.Parallel()

	repo := &fakeRatelimitStore{cfg: &models.RatelimitConfig{Rate: "1-M"}}
	r := NewRateLimitReloader(memory.NewStore(), repo, "", zap.NewNop(), 0)
	h := r.Middleware()(okHandler())

	serve(h, "198.51.100.3")
	if code := serve(h, "198.51.100.3"); code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", code)
	}

	repo.mu.Lock()
	repo.cfg = &models.RatelimitConfig{Rate: "100-M"}
	repo.mu.Unlock()
	r.load(context.Background())

	if r.Rate() != "100-M" {
		t.Errorf("Expected reloaded rate 100-M, got %s", r.Rate())
	}
	if code := serve(h, "198.51.100.3"); code != http.StatusOK {
		t.Errorf("Expected 200 after raising the limit, got %d", code)
	}
}

func TestRateLimitReloader_FallsBack(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		repo *fakeRatelimitStore
	}{
		{name: "store error", repo: &fakeRatelimitStore{err: errors.New("db down")}},
		{name: "bad stored rate", repo: &fakeRatelimitStore{cfg: &models.RatelimitConfig{Rate: "lots"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewRateLimitReloader(memory.NewStore(), tt.repo, "5-S", zap.NewNop(), 0)
			r.Middleware()(okHandler())
			if r.Rate() != "5-S" {
				t.Errorf("Expected fallback rate 5-S, got %s", r.Rate())
			}
		})
	}
}

type fakeCorsStore struct {
	cfg *models.CorsConfig
	err error
}

func (f *fakeCorsStore) Get(context.Context) (*models.CorsConfig, error) {
	return f.cfg, f.err
}

func preflight(h http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/habits", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCORSReloader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		repo        *fakeCorsStore
		fallback    string
		origin      string
		wantAllowed bool
		wantOrigins []string
	}{
		{
			name:        "fallback when unset",
			repo:        &fakeCorsStore{},
			fallback:    "http://localhost:3000",
			origin:      "http://localhost:3000",
			wantAllowed: true,
			wantOrigins: []string{"http://localhost:3000"},
		},
		{
			name:        "fallback on error",
			repo:        &fakeCorsStore{err: errors.New("db down")},
			fallback:    "https://a.example, https://b.example",
			origin:      "https://b.example",
			wantAllowed: true,
			wantOrigins: []string{"https://a.example", "https://b.example"},
		},
		{
			name:        "stored config wins",
			repo:        &fakeCorsStore{cfg: &models.CorsConfig{AllowedOrigins: "https://habits.example", AllowCredentials: true, MaxAge: 600}},
			fallback:    "http://localhost:3000",
			origin:      "http://localhost:3000",
			wantAllowed: false,
			wantOrigins: []string{"https://habits.example"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewCORSReloader(tt.repo, tt.fallback, zap.NewNop(), 0)
			h := r.Middleware()(okHandler())

			got := r.Origins()
			if len(got) != len(tt.wantOrigins) {
				t.Fatalf("Expected origins %v, got %v", tt.wantOrigins, got)
			}
			for i := range got {
				if got[i] != tt.wantOrigins[i] {
					t.Errorf("Expected origins %v, got %v", tt.wantOrigins, got)
				}
			}

			w := preflight(h, tt.origin)
			allowed := w.Header().Get("Access-Control-Allow-Origin") == tt.origin
			if allowed != tt.wantAllowed {
				t.Errorf("Expected allowed=%v for %s, headers %v", tt.wantAllowed, tt.origin, w.Header())
			}
		})
	}
}

func TestRateLimitReloader_SharedAcrossRouters(t *testing.T) {
	t.Parallel()

	repo := &fakeRatelimitStore{cfg: &models.RatelimitConfig{Rate: "1-M"}}
	r := NewRateLimitReloader(memory.NewStore(), repo, "", zap.NewNop(), 0)

	var hitA, hitB int
	a := r.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { hitA++ }))
	b := r.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { hitB++ }))

	if code := serve(a, "198.51.100.9"); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if code := serve(b, "198.51.100.9"); code != http.StatusTooManyRequests {
		t.Errorf("Expected the shared limit to apply, got %d", code)
	}
	if hitA != 1 || hitB != 0 {
		t.Errorf("Expected each router to reach its own handler, got a=%d b=%d", hitA, hitB)
	}
	if len(repo.saved) != 0 {
		t.Errorf("Expected no writes for a stored rate, got %v", repo.saved)
	}
}
