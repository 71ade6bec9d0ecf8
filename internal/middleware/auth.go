package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/benvon/habit-tracker/internal/models"
	"github.com/benvon/habit-tracker/internal/request"
	"github.com/benvon/habit-tracker/internal/services/auth"
	"go.uber.org/zap"
)

// SessionCookieName is the cookie carrying the session token
const SessionCookieName = "sessionId"

// Authenticator resolves and refreshes session tokens
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, *auth.Session, error)
	Refresh(ctx context.Context, session *auth.Session) (*auth.Session, error)
}

var _ Authenticator = (*auth.Service)(nil)

// SessionCookies writes and clears the session cookie
type SessionCookies struct {
	Secure bool
}

// Set writes the cookie for session
func (c SessionCookies) Set(w http.ResponseWriter, session *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the cookie in the browser
func (c SessionCookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionToken returns the session token of the request, if any
func SessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// SessionAuth rejects requests without a live session with 401. Accepted
// requests get the user in their context and a re-issued cookie that
// extends the session.
func SessionAuth(authn Authenticator, cookies SessionCookies, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}

			ctx := r.Context()
			user, session, err := authn.Authenticate(ctx, token)
			if err != nil {
				if errors.Is(err, auth.ErrSessionNotFound) || errors.Is(err, auth.ErrUserNotFound) {
					cookies.Clear(w)
					writeError(w, r, http.StatusUnauthorized, "unauthorized", "Invalid or expired session")
					return
				}
				logger.Error("session_lookup_failed", zap.Error(err))
				writeError(w, r, http.StatusInternalServerError, "internal_error", "Failed to validate session")
				return
			}

			refreshed, err := authn.Refresh(ctx, session)
			if err != nil {
				logger.Warn("session_refresh_failed",
					zap.Int64("user_id", user.ID),
					zap.Error(err),
				)
			} else {
				cookies.Set(w, refreshed)
			}

			next.ServeHTTP(w, r.WithContext(request.WithUser(ctx, user)))
		})
	}
}
