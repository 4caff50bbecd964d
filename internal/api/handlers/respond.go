package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/doc2md/doc2md/internal/core"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// statusFor maps the domain error chain onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrEncodedFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrProbeFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrCacheEntryExpired):
		return http.StatusGone
	case errors.Is(err, core.ErrConfigurationMissing):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrUpstreamCallFailed):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrEncodingTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err under an explicit status, for endpoints whose
// contract fixes a code the default taxonomy mapping would not pick.
func respondError(w http.ResponseWriter, logger *zap.Logger, status int, err error) {
	logger.Warn("Request rejected", zap.Int("status", status), zap.Error(err))
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func handleError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status >= 500 {
		logger.Error("Request failed", zap.Int("status", status), zap.Error(err))
	} else {
		logger.Warn("Request rejected", zap.Int("status", status), zap.Error(err))
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
