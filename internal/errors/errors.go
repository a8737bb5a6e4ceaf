// Package errors defines the error type returned by the HTTP surface. Each
// ServiceError carries a stable code, a client-safe message and the HTTP
// status it maps to.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// ServiceError is an error with an HTTP status and optional details.
type ServiceError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetails returns e with key set in its details.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New builds a ServiceError.
func New(code, message string, status int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}

// Wrap builds a ServiceError around cause.
func Wrap(cause error, code, message string, status int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: cause}
}

func Unauthorized(message string) *ServiceError {
	return New("unauthorized", message, http.StatusUnauthorized)
}

func Forbidden(message string) *ServiceError {
	return New("forbidden", message, http.StatusForbidden)
}

func NotFound(resource string) *ServiceError {
	return New("not_found", resource+" not found", http.StatusNotFound)
}

func BadRequest(message string) *ServiceError {
	return New("bad_request", message, http.StatusBadRequest)
}

// InvalidFormat reports a malformed field.
func InvalidFormat(field, reason string) *ServiceError {
	return New("invalid_format", "invalid "+field, http.StatusBadRequest).WithDetails("reason", reason)
}

// InvalidToken reports a rejected credential.
func InvalidToken(cause error) *ServiceError {
	return Wrap(cause, "invalid_token", "invalid or expired token", http.StatusUnauthorized)
}

// RateLimitExceeded reports throttling with the configured limit.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return New("rate_limit_exceeded", "too many requests", http.StatusTooManyRequests).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

func Internal(message string, cause error) *ServiceError {
	return Wrap(cause, "internal_error", message, http.StatusInternalServerError)
}

// GetServiceError extracts a ServiceError from err's chain.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

type errorBody struct {
	Error *ServiceError `json:"error"`
}

// Write renders se as a JSON error response.
func Write(w http.ResponseWriter, se *ServiceError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(se.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorBody{Error: se})
}
