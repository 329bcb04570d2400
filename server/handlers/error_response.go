package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/openlms/mediagate/auth"
	"github.com/openlms/mediagate/issuer"
	"github.com/openlms/mediagate/providers"
	"github.com/openlms/mediagate/token"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SendErrorResponse sends a standardized JSON error response. Upstream
// provider errors are collapsed into a generic message so no provider
// detail leaks to clients; the caller is expected to have logged it.
func SendErrorResponse(w http.ResponseWriter, logger *zap.Logger, err error, defaultStatusCode int) {
	w.Header().Set("Content-Type", "application/json")

	var statusCode int
	var errorCode string
	message := err.Error()

	switch {
	case errors.Is(err, issuer.ErrInvalidRequest):
		statusCode = http.StatusBadRequest
		errorCode = "VALIDATION_ERROR"
	case errors.Is(err, token.ErrTokenExpired):
		statusCode = http.StatusUnauthorized
		errorCode = "TOKEN_EXPIRED"
		message = "playback token expired"
	case errors.Is(err, token.ErrTokenMalformed):
		statusCode = http.StatusBadRequest
		errorCode = "TOKEN_MALFORMED"
		message = "playback token invalid"
	case errors.Is(err, token.ErrNoSigningSecret):
		statusCode = http.StatusInternalServerError
		errorCode = "CONFIGURATION_ERROR"
		message = "service misconfigured"
	case errors.Is(err, providers.ErrNotFound):
		statusCode = http.StatusNotFound
		errorCode = "FILE_NOT_FOUND"
		message = "file not found"
	case errors.Is(err, providers.ErrRangeNotSatisfiable):
		statusCode = http.StatusRequestedRangeNotSatisfiable
		errorCode = "RANGE_NOT_SATISFIABLE"
		message = "requested range not satisfiable"
	case errors.Is(err, providers.ErrUpstreamTimeout),
		errors.Is(err, providers.ErrUpstreamAuth),
		errors.Is(err, providers.ErrUnavailable):
		statusCode = http.StatusBadGateway
		errorCode = "UPSTREAM_ERROR"
		message = "upstream storage provider unavailable"
	case errors.Is(err, auth.ErrAuthenticationFailed):
		statusCode = http.StatusUnauthorized
		errorCode = "AUTHENTICATION_FAILED"
	default:
		statusCode = defaultStatusCode
		errorCode = "INTERNAL_ERROR"
	}

	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Code:    errorCode,
		Message: message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("Failed to encode error response", zap.Error(err))
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "Internal error occurred")
	}

	logger.Info("Error response sent",
		zap.String("error_code", errorCode),
		zap.Int("status_code", statusCode),
		zap.Error(err))
}
