package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"counselor-assistant/internal/logger"
	"counselor-assistant/internal/session"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Errorw("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeAuthError maps gate errors to 401/403.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrForbidden):
		writeError(w, http.StatusForbidden, "Admin access required")
	default:
		writeError(w, http.StatusUnauthorized, "Please log in")
	}
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	logger.Log.Errorw("internal server error", "request_id", RequestID(r.Context()), "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
