package handlers

import (
	"net/http"
	"strconv"

	"github.com/benvon/habit-tracker/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// LogHandler serves completion log queries across a user's habits
type LogHandler struct {
	service HabitService
	logger  *zap.Logger
}

// NewLogHandler creates a new log handler
func NewLogHandler(service HabitService, logger *zap.Logger) *LogHandler {
	return &LogHandler{service: service, logger: logger}
}

// RegisterRoutes registers log routes on the given router
// The router should already have the /logs prefix
func (h *LogHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/date/{date}", h.LogsOnDate).Methods("GET")
	r.HandleFunc("/range", h.LogsInRange).Methods("GET")
}

// LogsOnDate returns the user's logs for one day
func (h *LogHandler) LogsOnDate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	date, err := validation.ParseDate("date", mux.Vars(r)["date"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	habitID, ok := optionalHabitID(w, r)
	if !ok {
		return
	}

	logs, err := h.service.LogsOnDate(r.Context(), userID, date, habitID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to fetch logs for date")
		return
	}
	respondJSON(w, http.StatusOK, nonNil(logs))
}

// LogsInRange returns the user's logs between startDate and endDate inclusive
func (h *LogHandler) LogsInRange(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	if q.Get("startDate") == "" || q.Get("endDate") == "" {
		respondJSONError(w, http.StatusBadRequest, "bad_request", "Both startDate and endDate are required")
		return
	}
	start, err := validation.ParseDate("startDate", q.Get("startDate"))
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	end, err := validation.ParseDate("endDate", q.Get("endDate"))
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	habitID, ok := optionalHabitID(w, r)
	if !ok {
		return
	}

	logs, err := h.service.LogsBetween(r.Context(), userID, start, end, habitID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to fetch logs for date range")
		return
	}
	respondJSON(w, http.StatusOK, nonNil(logs))
}

// optionalHabitID parses the habitId query parameter when present.
func optionalHabitID(w http.ResponseWriter, r *http.Request) (*int64, bool) {
	raw := r.URL.Query().Get("habitId")
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondJSONError(w, http.StatusBadRequest, "bad_request", "Invalid habitId")
		return nil, false
	}
	return &id, true
}

// StatsHandler serves the dashboard aggregate
type StatsHandler struct {
	service HabitService
	logger  *zap.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(service HabitService, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{service: service, logger: logger}
}

// RegisterRoutes registers the stats route on the API router
func (h *StatsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/stats", h.GetStats).Methods("GET")
}

// GetStats returns the user's stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to fetch stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
