package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"incomeledger/internal/core"
)

type apiResponse struct {
	Success    bool             `json:"success"`
	Data       any              `json:"data,omitempty"`
	Message    string           `json:"message,omitempty"`
	Error      string           `json:"error,omitempty"`
	Pagination *core.Pagination `json:"pagination,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiResponse{Success: false, Error: msg})
}

// writeServiceError maps domain errors onto HTTP statuses. Expected
// outcomes keep their message; anything else becomes an opaque 500
// after the storage layer has already rolled back.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusUnprocessableEntity, ve.Error())
	case errors.Is(err, core.ErrInvalidAmount):
		writeError(w, http.StatusUnprocessableEntity, "amount: must be a positive amount up to 999999999.99")
	case errors.Is(err, core.ErrInvalidCategory):
		writeError(w, http.StatusUnprocessableEntity, "Invalid category")
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, core.ErrCategoryExists):
		writeError(w, http.StatusConflict, "A category with this name already exists")
	default:
		slog.ErrorContext(r.Context(), "Request failed", "error", err, "url", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// actorID extracts the externally resolved actor identity; empty means
// the request never passed the authentication layer.
func actorID(r *http.Request) string {
	return r.Header.Get(actorHeader)
}

func auditContext(r *http.Request) core.AuditContext {
	return core.AuditContext{
		IPAddress: clientIP(r),
		UserAgent: r.Header.Get("User-Agent"),
	}
}

// parseDate accepts a plain ISO day or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
