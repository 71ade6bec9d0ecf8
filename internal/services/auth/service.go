// Package auth implements username/password accounts and cookie sessions.
// A session is a signed token naming a session id; the id stays valid only
// while the session store still holds it.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/habit-tracker/internal/database"
	"github.com/benvon/habit-tracker/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt cost used for new password hashes.
const PasswordCost = 10

// DefaultSessionTTL is the session lifetime when none is configured.
const DefaultSessionTTL = 30 * 24 * time.Hour

var (
	// ErrInvalidCredentials is returned for an unknown username or wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUsernameTaken is returned when registering an existing username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrSessionNotFound is returned for missing, expired or revoked sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUserNotFound is returned when the session's user no longer exists.
	ErrUserNotFound = errors.New("user not found")
)

// UserStore persists user accounts
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
}

var _ UserStore = (*database.UserRepository)(nil)

// SessionStore tracks live session ids. Get returns ErrSessionNotFound for
// unknown or expired ids.
type SessionStore interface {
	Create(ctx context.Context, sessionID string, userID int64, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (int64, error)
	Touch(ctx context.Context, sessionID string, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
}

// Session is an issued session token
type Session struct {
	ID        string
	UserID    int64
	Token     string
	ExpiresAt time.Time
}

// Service implements registration, login and session validation
type Service struct {
	users    UserStore
	sessions SessionStore
	signer   *TokenSigner
	ttl      time.Duration
	logger   *zap.Logger
}

// NewService creates an auth service. A non-positive ttl uses DefaultSessionTTL.
func NewService(users UserStore, sessions SessionStore, signer *TokenSigner, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:    users,
		sessions: sessions,
		signer:   signer,
		ttl:      ttl,
		logger:   logger,
	}
}

// SessionTTL returns the configured session lifetime
func (s *Service) SessionTTL() time.Duration { return s.ttl }

// RegisterInput holds the fields of a new account
type RegisterInput struct {
	Username string
	Password string
	FullName *string
	Email    *string
}

// Register creates an account and opens a session for it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, *Session, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, nil, ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), PasswordCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hash),
		FullName:     in.FullName,
		Email:        in.Email,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicateUsername) {
			return nil, nil, ErrUsernameTaken
		}
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	session, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("user_registered", zap.Int64("user_id", user.ID))
	return user, session, nil
}

// Login checks the credentials and opens a new session.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, *Session, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

func (s *Service) openSession(ctx context.Context, userID int64) (*Session, error) {
	id := uuid.NewString()
	if err := s.sessions.Create(ctx, id, userID, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	token, expires, err := s.signer.Sign(userID, id, s.ttl)
	if err != nil {
		_ = s.sessions.Delete(ctx, id)
		return nil, err
	}
	return &Session{ID: id, UserID: userID, Token: token, ExpiresAt: expires}, nil
}

// Authenticate resolves a session token to its live session and user.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, *Session, error) {
	claims, err := s.signer.Verify(token)
	if err != nil {
		return nil, nil, ErrSessionNotFound
	}

	userID, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, fmt.Errorf("failed to get session: %w", err)
	}
	if userID != claims.UserID {
		return nil, nil, ErrSessionNotFound
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, &Session{ID: claims.SessionID, UserID: userID, Token: token, ExpiresAt: claims.ExpiresAt}, nil
}

// Refresh extends a live session and returns a re-issued token for it.
func (s *Service) Refresh(ctx context.Context, session *Session) (*Session, error) {
	if err := s.sessions.Touch(ctx, session.ID, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to extend session: %w", err)
	}
	token, expires, err := s.signer.Sign(session.UserID, session.ID, s.ttl)
	if err != nil {
		return nil, err
	}
	return &Session{ID: session.ID, UserID: session.UserID, Token: token, ExpiresAt: expires}, nil
}

// Logout revokes the session named by token. Invalid or already revoked
// tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.signer.Verify(token)
	if err != nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ProfileInput holds optional profile changes; nil fields are left alone.
type ProfileInput struct {
	FullName *string
	Email    *string
	Bio      *string
}

// Profile returns the user's account
func (s *Service) Profile(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateProfile applies profile changes to the user's account.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*models.User, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.FullName != nil {
		user.FullName = in.FullName
	}
	if in.Email != nil {
		user.Email = in.Email
	}
	if in.Bio != nil {
		user.Bio = in.Bio
	}
	if err := s.users.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}
