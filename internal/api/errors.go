package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/upbank/core-service/internal/domain"
	"go.uber.org/zap"
)

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error        string `json:"error"`
	Code         string `json:"code"`
	AttemptsLeft *int   `json:"attemptsLeft,omitempty"`
}

func statusForReason(reason domain.Reason) int {
	switch reason {
	case domain.ReasonUserNotFound, domain.ReasonInvalidCredentials:
		return http.StatusUnauthorized
	case domain.ReasonAccountNotFound, domain.ReasonDestinationNotFound:
		return http.StatusNotFound
	case domain.ReasonAccountBlocked, domain.ReasonAccountNotActive:
		return http.StatusForbidden
	case domain.ReasonMissingAmount, domain.ReasonInvalidAmount, domain.ReasonInsufficientFunds,
		domain.ReasonMissingConcept, domain.ReasonMissingDestination, domain.ReasonSelfTransferNotAllowed:
		return http.StatusBadRequest
	case domain.ReasonTooManyAttempts:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders a rejection. Anything that is not a rejection is logged and
// reported as a generic failure.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	rejection, ok := domain.AsRejection(err)
	if !ok {
		h.logger.Error("unhandled service error", zap.Error(err))
		rejection = domain.ErrTransferFailed
	}
	status := statusForReason(rejection.Reason)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("reason", string(rejection.Reason)), zap.Error(err))
	}
	if rejection.Reason == domain.ReasonTooManyAttempts && rejection.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(rejection.RetryAfter))
	}
	writeJSON(w, status, errorResponse{
		Error:        rejection.Message,
		Code:         string(rejection.Reason),
		AttemptsLeft: rejection.AttemptsLeft,
	})
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeJSON is a helper to write JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"Failed to encode response"}`, http.StatusInternalServerError)
	}
}
