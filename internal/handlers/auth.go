package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/benvon/habit-tracker/internal/middleware"
	"github.com/benvon/habit-tracker/internal/models"
	"github.com/benvon/habit-tracker/internal/request"
	"github.com/benvon/habit-tracker/internal/services/auth"
	"github.com/benvon/habit-tracker/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// AccountService registers users and manages their sessions
type AccountService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*models.User, *auth.Session, error)
	Login(ctx context.Context, username, password string) (*models.User, *auth.Session, error)
	Logout(ctx context.Context, token string) error
}

var _ AccountService = (*auth.Service)(nil)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	accounts AccountService
	cookies  middleware.SessionCookies
	logger   *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(accounts AccountService, cookies middleware.SessionCookies, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, cookies: cookies, logger: logger}
}

// RegisterRoutes registers auth routes on the given router
// The router should already have the /api/v1/auth prefix. protect wraps
// routes that need a live session.
func (h *AuthHandler) RegisterRoutes(r *mux.Router, protect func(http.Handler) http.Handler) {
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/logout", h.Logout).Methods("POST")
	r.Handle("/user", protect(http.HandlerFunc(h.CurrentUser))).Methods("GET")
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Username string  `json:"username" validate:"required,max=50"`
	Password string  `json:"password" validate:"required,max=72"`
	FullName *string `json:"fullName" validate:"omitempty,max=100"`
	Email    *string `json:"email" validate:"omitempty,email,max=254"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Register creates an account and logs it in
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, session, err := h.accounts.Register(r.Context(), auth.RegisterInput{
		Username: validation.SanitizeText(req.Username),
		Password: req.Password,
		FullName: trimmed(req.FullName),
		Email:    trimmed(req.Email),
	})
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondJSONError(w, http.StatusBadRequest, "validation_failed", "username and password are required")
		return
	case errors.Is(err, auth.ErrUsernameTaken):
		respondJSONError(w, http.StatusConflict, "username_taken", "Username already exists")
		return
	case err != nil:
		h.logger.Error("registration_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to register")
		return
	}

	h.cookies.Set(w, session)
	respondJSON(w, http.StatusCreated, user)
}

// Login checks credentials and starts a session
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, session, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondJSONError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
		return
	case err != nil:
		h.logger.Error("login_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to log in")
		return
	}

	h.cookies.Set(w, session)
	respondJSON(w, http.StatusOK, user)
}

// Logout revokes the current session and clears the cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionToken(r); token != "" {
		if err := h.accounts.Logout(r.Context(), token); err != nil {
			h.logger.Error("logout_failed", zap.Error(err))
			respondJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to log out")
			return
		}
	}
	h.cookies.Clear(w)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// CurrentUser returns the authenticated user
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// ProfileService reads and updates user profiles
type ProfileService interface {
	Profile(ctx context.Context, userID int64) (*models.User, error)
	UpdateProfile(ctx context.Context, userID int64, in auth.ProfileInput) (*models.User, error)
}

var _ ProfileService = (*auth.Service)(nil)

// UserHandler serves the authenticated user's profile
type UserHandler struct {
	profiles ProfileService
	logger   *zap.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(profiles ProfileService, logger *zap.Logger) *UserHandler {
	return &UserHandler{profiles: profiles, logger: logger}
}

// RegisterRoutes registers user routes on the given router
// The router should already have the /users prefix
func (h *UserHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/me", h.GetMe).Methods("GET")
	r.HandleFunc("/me", h.UpdateMe).Methods("PUT")
}

// UpdateProfileRequest represents a profile update; absent fields are unchanged
type UpdateProfileRequest struct {
	FullName *string `json:"fullName" validate:"omitempty,max=100"`
	Email    *string `json:"email" validate:"omitempty,email,max=254"`
	Bio      *string `json:"bio" validate:"omitempty,max=1000"`
}

// GetMe returns the user's profile
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.profiles.Profile(r.Context(), userID)
	if err != nil {
		h.profileError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// UpdateMe updates the user's profile
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.profiles.UpdateProfile(r.Context(), userID, auth.ProfileInput{
		FullName: trimmed(req.FullName),
		Email:    trimmed(req.Email),
		Bio:      trimmed(req.Bio),
	})
	if err != nil {
		h.profileError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *UserHandler) profileError(w http.ResponseWriter, err error) {
	if errors.Is(err, auth.ErrUserNotFound) {
		respondJSONError(w, http.StatusNotFound, "not_found", "User not found")
		return
	}
	h.logger.Error("profile_request_failed", zap.Error(err))
	respondJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to process profile")
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
