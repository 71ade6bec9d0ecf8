package main

import (
	"net/http"
	"time"

	"github.com/benvon/habit-tracker/internal/handlers"
	"github.com/benvon/habit-tracker/internal/middleware"
	"github.com/benvon/habit-tracker/internal/telemetry"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

// routerDeps is everything the HTTP surface is built from
type routerDeps struct {
	Habits      handlers.HabitService
	Accounts    handlers.AccountService
	Profiles    handlers.ProfileService
	Authn       middleware.Authenticator
	Cookies     middleware.SessionCookies
	CORS        *middleware.CORSReloader
	RateLimit   *middleware.RateLimitReloader
	Health      *handlers.HealthChecker
	OpenAPIPath string
	Version     string
	EnableHSTS  bool
	Tracing     bool
	Logger      *zap.Logger
}

// newRouter wires handlers and middleware. Middleware registered first on a
// router is the outermost.
func newRouter(d routerDeps) *mux.Router {
	r := mux.NewRouter()

	if d.Tracing {
		r.Use(otelmux.Middleware(telemetry.ServiceAPI))
	}
	r.Use(middleware.SecurityHeaders(d.EnableHSTS))
	r.Use(d.CORS.Middleware())
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.ErrorHandler(d.Logger))
	r.Use(middleware.Audit(d.Logger))
	r.Use(middleware.Logging(d.Logger))

	r.HandleFunc("/healthz", d.Health.HealthCheck).Methods("GET")
	r.HandleFunc("/version", handlers.Version(d.Version)).Methods("GET")
	handlers.NewOpenAPIHandler(d.OpenAPIPath).RegisterRoutes(r)

	rateLimit := d.RateLimit.Middleware()
	sessionAuth := middleware.SessionAuth(d.Authn, d.Cookies, d.Logger)

	api := r.PathPrefix("/api/v1").Subrouter()

	authRouter := api.PathPrefix("/auth").Subrouter()
	authRouter.Use(rateLimit)
	handlers.NewAuthHandler(d.Accounts, d.Cookies, d.Logger).RegisterRoutes(authRouter, sessionAuth)

	protected := api.NewRoute().Subrouter()
	protected.Use(rateLimit)
	protected.Use(sessionAuth)

	handlers.NewHabitHandler(d.Habits, d.Logger).RegisterRoutes(protected.PathPrefix("/habits").Subrouter())
	handlers.NewLogHandler(d.Habits, d.Logger).RegisterRoutes(protected.PathPrefix("/logs").Subrouter())
	handlers.NewStatsHandler(d.Habits, d.Logger).RegisterRoutes(protected)
	handlers.NewUserHandler(d.Profiles, d.Logger).RegisterRoutes(protected.PathPrefix("/users").Subrouter())

	// Preflights for routes that do not list OPTIONS; CORS answers them first.
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}
