package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"butterfly/internal/domain"
	"butterfly/internal/errors"
	"butterfly/internal/remote"
	"butterfly/internal/repository"
	"butterfly/internal/scene"
	"butterfly/internal/session"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.S().Warnw("Failed to encode JSON", "error", err)
	}
}

func writeError(w http.ResponseWriter, message, details string, statusCode int) {
	writeJSON(w, ErrorResponse{Error: message, Details: details}, statusCode)
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) (int, string) {
	switch {
	case errors.IsAny(err, session.ErrNotFound, domain.ErrNodeNotFound, remote.ErrNotFound, repository.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, session.ErrInvalidRequest):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, session.ErrTooMany):
		return http.StatusTooManyRequests, "Too many sessions"
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone, "Session closed"
	case errors.Is(err, scene.ErrUnbound):
		return http.StatusConflict, "Node not interactive yet"
	case errors.Is(err, remote.ErrTransport):
		return http.StatusBadGateway, "Related articles service unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Timed out"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

func (h *SessionHandler) fail(w http.ResponseWriter, err error) {
	code, msg := statusFor(err)
	details := err.Error()
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		details = strings.Join(hints, "; ")
	}
	if code >= 500 {
		h.log.Errorw(msg, "error", err)
	} else {
		h.log.Debugw(msg, "error", err)
	}
	writeError(w, msg, details, code)
}
