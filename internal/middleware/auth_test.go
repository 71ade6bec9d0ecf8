package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benvon/habit-tracker/internal/models"
	"github.com/benvon/habit-tracker/internal/request"
	"github.com/benvon/habit-tracker/internal/services/auth"
	"go.uber.org/zap"
)

type mockAuthenticator struct {
	users      map[string]*models.User
	err        error
	refreshErr error
	refreshed  int
}

func (m *mockAuthenticator) Authenticate(_ context.Context, token string) (*models.User, *auth.Session, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	u, ok := m.users[token]
	if !ok {
		return nil, nil, auth.ErrSessionNotFound
	}
	return u, &auth.Session{ID: "sid", UserID: u.ID, Token: token}, nil
}

func (m *mockAuthenticator) Refresh(_ context.Context, s *auth.Session) (*auth.Session, error) {
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	m.refreshed++
	return &auth.Session{ID: s.ID, UserID: s.UserID, Token: s.Token + "-new", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func TestSessionAuth(t *testing.T) {
	t.Parallel()

	alice := &models.User{ID: 3, Username: "alice"}

	tests := []struct {
		name         string
		cookie       string
		authErr      error
		refreshErr   error
		wantStatus   int
		wantCookie   string
		wantCleared  bool
		wantNextUser int64
	}{
		{name: "no cookie", wantStatus: http.StatusUnauthorized},
		{name: "unknown session", cookie: "stale", wantStatus: http.StatusUnauthorized, wantCleared: true},
		{name: "store failure", cookie: "good", authErr: errors.New("redis down"), wantStatus: http.StatusInternalServerError},
		{name: "valid session", cookie: "good", wantStatus: http.StatusOK, wantCookie: "good-new", wantNextUser: 3},
		{name: "refresh failure still serves", cookie: "good", refreshErr: errors.New("redis down"), wantStatus: http.StatusOK, wantNextUser: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			authn := &mockAuthenticator{users: map[string]*models.User{"good": alice}, err: tt.authErr, refreshErr: tt.refreshErr}
			var gotUser int64
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser, _ = request.UserID(r)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest("GET", "/api/v1/habits", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			SessionAuth(authn, SessionCookies{}, zap.NewNop())(next).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if gotUser != tt.wantNextUser {
				t.Errorf("Expected user %d in context, got %d", tt.wantNextUser, gotUser)
			}

			var set *http.Cookie
			for _, c := range w.Result().Cookies() {
				if c.Name == SessionCookieName {
					set = c
				}
			}
			switch {
			case tt.wantCookie != "":
				if set == nil || set.Value != tt.wantCookie {
					t.Fatalf("Expected cookie %q, got %+v", tt.wantCookie, set)
				}
				if !set.HttpOnly || set.SameSite != http.SameSiteLaxMode {
					t.Errorf("Expected HttpOnly SameSite=Lax cookie, got %+v", set)
				}
			case tt.wantCleared:
				if set == nil || set.MaxAge >= 0 {
					t.Errorf("Expected cleared cookie, got %+v", set)
				}
			default:
				if set != nil {
					t.Errorf("Expected no cookie, got %+v", set)
				}
			}
		})
	}
}

func TestSessionCookies_Secure(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	SessionCookies{Secure: true}.Set(w, &auth.Session{Token: "tok", ExpiresAt: time.Now().Add(time.Hour)})

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || !cookies[0].Secure {
		t.Fatalf("Expected one secure cookie, got %+v", cookies)
	}
	if cookies[0].MaxAge <= 0 || cookies[0].MaxAge > 3600 {
		t.Errorf("Expected MaxAge within an hour, got %d", cookies[0].MaxAge)
	}
}
