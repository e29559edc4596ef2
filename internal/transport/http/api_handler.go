package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quiz-leaderboard-service/internal/app"
	"quiz-leaderboard-service/internal/domain"
)

// APIHandler serves the leaderboard and test history endpoints.
type APIHandler struct {
	service *app.LeaderboardService
	logger  *slog.Logger
}

func NewAPIHandler(service *app.LeaderboardService, logger *slog.Logger) *APIHandler {
	return &APIHandler{service: service, logger: logger}
}

type rankResponse struct {
	UserID string `json:"userId"`
	Rank   *int   `json:"rank"`
}

type historyResponse struct {
	UserID   string                 `json:"userId"`
	Attempts []domain.AttemptRecord `json:"attempts"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

func (h *APIHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.service.Leaderboard(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (h *APIHandler) GetUserRank(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	rank, ok, err := h.service.UserRank(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := rankResponse{UserID: userID}
	if ok {
		resp.Rank = &rank
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	attempts, err := h.service.History(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if attempts == nil {
		attempts = []domain.AttemptRecord{}
	}
	writeJSON(w, http.StatusOK, historyResponse{UserID: userID, Attempts: attempts})
}

func (h *APIHandler) PostAttempt(w http.ResponseWriter, r *http.Request) {
	var attempt domain.AttemptRecord
	if err := json.NewDecoder(r.Body).Decode(&attempt); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid attempt payload"})
		return
	}
	// The path owns the user id; a body cannot record for someone else.
	attempt.UserID = chi.URLParam(r, "userID")

	saved, err := h.service.RecordAttempt(r.Context(), attempt)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *APIHandler) DeleteAttempt(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAttempt(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "attemptID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearHistory(r.Context(), chi.URLParam(r, "userID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) PutProfile(w http.ResponseWriter, r *http.Request) {
	var profile domain.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid profile payload"})
		return
	}
	profile.UserID = chi.URLParam(r, "userID")

	if err := h.service.UpsertProfile(r.Context(), profile); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrDataUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:     "Failed to load leaderboard data. Please try again.",
			Retryable: true,
		})
	case errors.Is(err, domain.ErrInvalidAttempt),
		errors.Is(err, domain.ErrInvalidProfile),
		errors.Is(err, domain.ErrUserRequired):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrAttemptNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrAttemptConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path), slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Retryable: true})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
