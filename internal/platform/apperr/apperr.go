// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

/*
Package apperr defines the centralized error handling framework for the companion service.

It provides a rich error type that bridges the gap between low-level collaborator
errors (identity provider, model backend, storage) and high-level HTTP responses.

Architecture:

  - AppError: A struct containing a machine-readable Code and a client-safe message.
  - Taxonomy: A closed set of constructors — every collaborator failure is mapped
    to exactly one of them at the operation boundary, never re-classified later.
  - Mapping: Explicit mapping from AppError to standard HTTP status codes.

Every error that leaves a service layer must be wrapped as an [AppError] so that
no raw provider or backend error ever reaches the view layer.
*/
package apperr

import (
	"errors"
	"net/http"
)

// AppError is the canonical error type for the companion API.
//
// It carries an HTTP status code, a machine-readable code, a client-safe
// message, and an optional slice of field-level validation errors.
//
// # Security
//
// The Cause field is for server-side logging only and is never sent to clients
// to avoid leaking internal implementation details (e.g., SQL queries, upstream
// API payloads).
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "NOT_FOUND", "RATE_LIMITED").
	Code string `json:"code"`
	// Message is a human-readable description safe to return to the client.
	Message string `json:"error"`
	// HTTPStatus is the HTTP response status code.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for server-side logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// # Error Taxonomy
//
// Closed set of constructors. One per failure class; the boundary that catches
// a collaborator error picks exactly one.

// ValidationError creates a 400 [AppError] for purely local input failures.
// These never reach a collaborator (e.g. mismatched passwords on sign-up).
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       "VALIDATION_ERROR",
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// CredentialRejected creates a 401 [AppError] for sign-in failures.
//
// The message is intentionally generic across wrong-password and unknown-user
// cases to prevent account enumeration.
func CredentialRejected(msg string) *AppError {
	return &AppError{
		Code:       "CREDENTIAL_REJECTED",
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// AlreadyExists creates a 409 [AppError] for duplicate-account conflicts.
func AlreadyExists(msg string) *AppError {
	return &AppError{
		Code:       "ALREADY_EXISTS",
		Message:    msg,
		HTTPStatus: http.StatusConflict,
	}
}

// NotFound creates a 404 [AppError] for a named resource.
//
// Example:
//
//	apperr.NotFound("Account") // Returns "Account not found"
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       "NOT_FOUND",
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// RateLimited creates a 429 [AppError] for throttled operations.
func RateLimited(msg string) *AppError {
	return &AppError{
		Code:       "RATE_LIMITED",
		Message:    msg,
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// CodeInvalidOrExpired creates a 400 [AppError] for rejected one-time codes
// (email verification, password reset).
func CodeInvalidOrExpired(msg string) *AppError {
	return &AppError{
		Code:       "CODE_INVALID_OR_EXPIRED",
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
	}
}

// Network creates a 502 [AppError] for connectivity failures toward a
// collaborator (identity provider, model backend, storage).
func Network(cause error) *AppError {
	return &AppError{
		Code:       "UPSTREAM_UNAVAILABLE",
		Message:    "A required service is temporarily unreachable",
		HTTPStatus: http.StatusBadGateway,
		Cause:      cause,
	}
}

// Unknown creates a 500 [AppError] wrapping an unclassifiable failure.
// The cause is stored for logging but is never sent to the client.
func Unknown(cause error) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// Conflict creates a 409 [AppError] for state-machine precondition failures
// (e.g. an operation invoked from a state that does not allow it).
func Conflict(msg string) *AppError {
	return &AppError{
		Code:       "CONFLICT",
		Message:    msg,
		HTTPStatus: http.StatusConflict,
	}
}

// Unauthorized creates a 401 [AppError] for gate/session failures.
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:       "UNAUTHORIZED",
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// CodeOf returns the taxonomy code of err, or "INTERNAL_ERROR" when err is
// not an [*AppError]. Useful for tests and structured logging.
func CodeOf(err error) string {
	if ae := As(err); ae != nil {
		return ae.Code
	}
	return "INTERNAL_ERROR"
}
