package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ApiError is the body of every error response.
type ApiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ApiErrorResponse wraps ApiError as {"error": {...}}.
type ApiErrorResponse struct {
	Error ApiError `json:"error"`
}

// newError creates an ApiError with the given code and message
func newError(code, message string) ApiError {
	return ApiError{
		Code:    code,
		Message: message,
	}
}

// newErrorResponse creates an ApiErrorResponse with the given code and message
func newErrorResponse(code, message string) ApiErrorResponse {
	return ApiErrorResponse{
		Error: newError(code, message),
	}
}

// Common error codes
const (
	ErrCodeInternalError   = "INTERNAL_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeValidationError = "VALIDATION_ERROR"
	ErrCodeRateLimited     = "RATE_LIMITED"
)

func notFoundResponse(message string) ApiErrorResponse {
	return newErrorResponse(ErrCodeNotFound, message)
}

func validationErrorResponse(message string) ApiErrorResponse {
	return newErrorResponse(ErrCodeValidationError, message)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("writing response body", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, resp ApiErrorResponse) {
	writeJSON(w, status, resp)
}

// writeInternalError logs err and sends a generic 500.
func writeInternalError(w http.ResponseWriter, r *http.Request, message string, err error) {
	slog.Error(message,
		"error", err.Error(),
		"method", r.Method,
		"path", r.URL.Path,
	)
	writeError(w, http.StatusInternalServerError, newErrorResponse(ErrCodeInternalError, message))
}
