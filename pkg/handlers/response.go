package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/wenshu-inc/wenshu-engine/pkg/apperrors"
	"github.com/wenshu-inc/wenshu-engine/pkg/logging"
)

// ApiResponse wraps data in the envelope returned by every endpoint.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeData writes a success envelope.
func writeData(w http.ResponseWriter, statusCode int, data any, logger *zap.Logger) {
	if err := WriteJSON(w, statusCode, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeError writes an error response, logging encoding failures.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string, logger *zap.Logger) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// WriteServiceError maps a service error onto a status code and writes it.
// Unclassified errors are logged and returned as 500 with a sanitized message.
func WriteServiceError(w http.ResponseWriter, err error, action string, logger *zap.Logger) {
	var unsafeErr *apperrors.UnsafeQueryError
	var connErr *apperrors.ConnectionError

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), logger)
	case errors.As(err, &unsafeErr):
		writeError(w, http.StatusBadRequest, "unsafe_query", unsafeErr.Error(), logger)
	case errors.Is(err, apperrors.ErrUnsupportedEngine):
		writeError(w, http.StatusBadRequest, "unsupported_engine", err.Error(), logger)
	case errors.Is(err, apperrors.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), logger)
	case errors.Is(err, apperrors.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error(), logger)
	case errors.As(err, &connErr):
		logger.Warn(action+" failed", zap.String("error", logging.SanitizeError(err)))
		writeError(w, http.StatusBadGateway, connErr.ErrorType, connErr.FriendlyMessage, logger)
	default:
		msg := logging.SanitizeError(err)
		logger.Error(action+" failed", zap.String("error", msg))
		writeError(w, http.StatusInternalServerError, "internal_error", msg, logger)
	}
}

// decodeBody decodes a JSON request body, writing 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", logger)
		return false
	}
	return true
}
