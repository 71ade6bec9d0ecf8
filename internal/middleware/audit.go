package middleware

import (
	"net/http"

	logpkg "github.com/benvon/habit-tracker/internal/logger"
	"github.com/benvon/habit-tracker/internal/request"
	"go.uber.org/zap"
)

// Audit logs failed authentication, authorization and rate limit responses.
func Audit(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			fields := func() []zap.Field {
				return []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("ip", logpkg.SanitizeString(request.ClientIP(r), logpkg.MaxGeneralStringLength)),
				}
			}

			switch rec.status {
			case http.StatusUnauthorized, http.StatusForbidden:
				logger.Warn("security_event", append(fields(), zap.Int("status_code", rec.status))...)
			case http.StatusTooManyRequests:
				logger.Warn("rate_limit_violation", fields()...)
			}
		})
	}
}
