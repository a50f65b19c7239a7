// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors must use AppError for consistent API and CLI responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Policy violations (422). Fatal to the current attempt, never retried.
	CodeTimingViolation     = "TIMING_VIOLATION"
	CodeDataIntegrity       = "DATA_INTEGRITY"
	CodeMissingPrerequisite = "MISSING_PREREQUISITE"
	CodeUnmatchPending      = "UNMATCH_PENDING"
	CodeBusinessRule        = "BUSINESS_RULE_VIOLATION"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict       = "CONFLICT"
	CodeDuplicateClose = "DUPLICATE_CLOSE"
)

// AppError is the standard error type for the engine.
// It implements error interface and provides structured details for responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (offending values, statuses, counts)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewTimingViolation is returned when a close is attempted outside its time window.
// check names the failed gate (cutoff, report_cooldown, import_cooldown).
func NewTimingViolation(check, message string) *AppError {
	return &AppError{
		Code:       CodeTimingViolation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"check": check},
	}
}

// NewDataIntegrity is returned when voucher data changed after the report was produced.
func NewDataIntegrity(expectedHash, actualHash string) *AppError {
	return &AppError{
		Code:       CodeDataIntegrity,
		Message:    "Voucher data changed since the daily report was produced",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"expected_hash": expectedHash,
			"actual_hash":   actualHash,
		},
	}
}

// NewDuplicateClose is returned when a close record for the date already exists
// in a status other than PASSED.
func NewDuplicateClose(businessDate, existingStatus string) *AppError {
	return &AppError{
		Code:       CodeDuplicateClose,
		Message:    fmt.Sprintf("Daily close for %s already exists with status %s", businessDate, existingStatus),
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"business_date":   businessDate,
			"existing_status": existingStatus,
		},
	}
}

// NewMissingPrerequisite is returned when an upstream step has not run.
func NewMissingPrerequisite(what, businessDate string) *AppError {
	return &AppError{
		Code:       CodeMissingPrerequisite,
		Message:    fmt.Sprintf("%s not found for %s", what, businessDate),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"prerequisite": what, "business_date": businessDate},
	}
}

// NewUnmatchPending blocks report and close execution while reconciliation findings exist.
func NewUnmatchPending(businessDate string, count int) *AppError {
	return &AppError{
		Code:       CodeUnmatchPending,
		Message:    fmt.Sprintf("%d unmatched voucher lines for %s", count, businessDate),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"business_date": businessDate, "count": count},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsDuplicateClose checks if error is CodeDuplicateClose
func IsDuplicateClose(err error) bool {
	return HasCode(err, CodeDuplicateClose)
}

// IsTimingViolation checks if error is CodeTimingViolation
func IsTimingViolation(err error) bool {
	return HasCode(err, CodeTimingViolation)
}

// IsPolicyViolation reports errors that block a close by business policy
// rather than by failure.
func IsPolicyViolation(err error) bool {
	appErr, ok := AsAppError(err)
	if !ok {
		return false
	}
	switch appErr.Code {
	case CodeTimingViolation, CodeDataIntegrity, CodeMissingPrerequisite, CodeUnmatchPending:
		return true
	}
	return false
}
