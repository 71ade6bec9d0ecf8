package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/benvon/habit-tracker/internal/models"
	"github.com/benvon/habit-tracker/internal/services/habits"
	"github.com/benvon/habit-tracker/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	// MaxHabitNameLength is the maximum length for habit names
	MaxHabitNameLength = 100
	// MaxHabitDescriptionLength is the maximum length for habit descriptions
	MaxHabitDescriptionLength = 500
)

// HabitService is the habit engine used by the habit, log and stats handlers
type HabitService interface {
	CreateHabit(ctx context.Context, userID int64, in habits.CreateHabitInput) (*models.HabitView, error)
	ListHabits(ctx context.Context, userID int64) ([]models.HabitView, error)
	GetHabit(ctx context.Context, userID, habitID int64) (*models.HabitView, error)
	UpdateHabit(ctx context.Context, userID, habitID int64, in habits.UpdateHabitInput) (*models.HabitView, error)
	DeleteHabit(ctx context.Context, userID, habitID int64) error
	Toggle(ctx context.Context, userID, habitID int64, date models.Date, completed bool) (*models.CompletionLog, error)
	HabitLogs(ctx context.Context, userID, habitID int64) ([]models.CompletionLog, error)
	LogsBetween(ctx context.Context, userID int64, start, end models.Date, habitID *int64) ([]models.CompletionLog, error)
	LogsOnDate(ctx context.Context, userID int64, date models.Date, habitID *int64) ([]models.CompletionLog, error)
	Stats(ctx context.Context, userID int64) (models.Stats, error)
}

var _ HabitService = (*habits.Service)(nil)

// HabitHandler handles habit-related requests
type HabitHandler struct {
	service HabitService
	logger  *zap.Logger
}

// NewHabitHandler creates a new habit handler
func NewHabitHandler(service HabitService, logger *zap.Logger) *HabitHandler {
	return &HabitHandler{service: service, logger: logger}
}

// RegisterRoutes registers habit routes on the given router
// The router should already have the /habits prefix
func (h *HabitHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListHabits).Methods("GET")
	r.HandleFunc("", h.CreateHabit).Methods("POST")
	r.HandleFunc("/{id}", h.GetHabit).Methods("GET")
	r.HandleFunc("/{id}", h.UpdateHabit).Methods("PUT")
	r.HandleFunc("/{id}", h.DeleteHabit).Methods("DELETE")
	r.HandleFunc("/{id}/toggle", h.ToggleHabit).Methods("POST")
	r.HandleFunc("/{id}/logs", h.HabitLogs).Methods("GET")
}

// CreateHabitRequest represents a create habit request
type CreateHabitRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Description string   `json:"description" validate:"max=500"`
	Category    string   `json:"category" validate:"omitempty,habit_category"`
	Color       string   `json:"color" validate:"omitempty,habit_color"`
	Frequency   []string `json:"frequency" validate:"dive,weekday"`
}

// UpdateHabitRequest represents a partial habit update. Absent fields are
// left unchanged; a present frequency replaces the whole set.
type UpdateHabitRequest struct {
	Name        *string  `json:"name" validate:"omitempty,max=100"`
	Description *string  `json:"description" validate:"omitempty,max=500"`
	Category    *string  `json:"category" validate:"omitempty,habit_category"`
	Color       *string  `json:"color" validate:"omitempty,habit_color"`
	Active      *bool    `json:"active"`
	Frequency   []string `json:"frequency" validate:"omitempty,dive,weekday"`
}

// ToggleRequest sets the completion state of a habit on a date
type ToggleRequest struct {
	Date      string `json:"date" validate:"required,calendar_date"`
	Completed *bool  `json:"completed" validate:"required"`
}

// ListHabits lists the user's habits with their analytics
func (h *HabitHandler) ListHabits(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	views, err := h.service.ListHabits(r.Context(), userID)
	if err != nil {
		h.serviceError(w, err, "Failed to retrieve habits")
		return
	}
	respondJSON(w, http.StatusOK, views)
}

// CreateHabit creates a new habit
func (h *HabitHandler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req CreateHabitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	name := validation.SanitizeText(req.Name)
	if name == "" {
		respondJSONError(w, http.StatusBadRequest, "validation_failed", "name is required")
		return
	}

	frequency, err := models.ParseRecurrence(req.Frequency)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	view, err := h.service.CreateHabit(r.Context(), userID, habits.CreateHabitInput{
		Name:        name,
		Description: validation.SanitizeText(req.Description),
		Category:    models.Category(req.Category),
		Color:       models.Color(req.Color),
		Frequency:   frequency,
	})
	if err != nil {
		h.serviceError(w, err, "Failed to create habit")
		return
	}
	respondJSON(w, http.StatusCreated, view)
}

// GetHabit returns a habit with its completion history
func (h *HabitHandler) GetHabit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	habitID, ok := pathID(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetHabit(r.Context(), userID, habitID)
	if err != nil {
		h.serviceError(w, err, "Failed to retrieve habit")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// UpdateHabit applies a partial update to a habit
func (h *HabitHandler) UpdateHabit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	habitID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateHabitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var in habits.UpdateHabitInput
	if req.Name != nil {
		name := validation.SanitizeText(*req.Name)
		if name == "" {
			respondJSONError(w, http.StatusBadRequest, "validation_failed", "name cannot be empty")
			return
		}
		in.Name = &name
	}
	if req.Description != nil {
		desc := validation.SanitizeText(*req.Description)
		in.Description = &desc
	}
	if req.Category != nil {
		c := models.Category(strings.TrimSpace(*req.Category))
		if !c.Valid() {
			respondJSONError(w, http.StatusBadRequest, "validation_failed", "category is invalid")
			return
		}
		in.Category = &c
	}
	if req.Color != nil {
		c := models.Color(strings.TrimSpace(*req.Color))
		if !c.Valid() {
			respondJSONError(w, http.StatusBadRequest, "validation_failed", "color is invalid")
			return
		}
		in.Color = &c
	}
	in.Active = req.Active
	if req.Frequency != nil {
		frequency, err := models.ParseRecurrence(req.Frequency)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		in.Frequency = &frequency
	}

	view, err := h.service.UpdateHabit(r.Context(), userID, habitID, in)
	if err != nil {
		h.serviceError(w, err, "Failed to update habit")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// DeleteHabit deletes a habit and its logs
func (h *HabitHandler) DeleteHabit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	habitID, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteHabit(r.Context(), userID, habitID); err != nil {
		h.serviceError(w, err, "Failed to delete habit")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleHabit records completion for a date and returns the updated habit
func (h *HabitHandler) ToggleHabit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	habitID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req ToggleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date, err := validation.ParseDate("date", req.Date)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	ctx := r.Context()
	if _, err := h.service.Toggle(ctx, userID, habitID, date, *req.Completed); err != nil {
		h.serviceError(w, err, "Failed to toggle habit completion")
		return
	}
	view, err := h.service.GetHabit(ctx, userID, habitID)
	if err != nil {
		h.serviceError(w, err, "Failed to retrieve habit")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// HabitLogs returns a habit's logs, newest first
func (h *HabitHandler) HabitLogs(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	habitID, ok := pathID(w, r)
	if !ok {
		return
	}

	logs, err := h.service.HabitLogs(r.Context(), userID, habitID)
	if err != nil {
		h.serviceError(w, err, "Failed to retrieve habit logs")
		return
	}
	respondJSON(w, http.StatusOK, nonNil(logs))
}

// serviceError maps service errors to responses. Unexpected errors are
// logged and answered with the given message.
func (h *HabitHandler) serviceError(w http.ResponseWriter, err error, message string) {
	writeServiceError(w, h.logger, err, message)
}

func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error, message string) {
	switch {
	case errors.Is(err, habits.ErrHabitNotFound):
		respondJSONError(w, http.StatusNotFound, "not_found", "Habit not found")
	case errors.Is(err, habits.ErrInvalidRange):
		respondJSONError(w, http.StatusBadRequest, "invalid_range", "startDate must not be after endDate")
	default:
		logger.Error("habit_request_failed", zap.String("message", message), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "internal_error", message)
	}
}

// nonNil keeps empty lists encoded as [] rather than null
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
