// backend/shared/go-utils/errors.go
package utils

import (
	"errors"
	"net/http"
)

// Error kinds shared by the tenancy engine. Every *AppError carries exactly
// one of these as its Kind so callers can branch with errors.Is.
var (
	ErrNotFound           = errors.New("not_found")
	ErrScopeViolation     = errors.New("scope_violation")
	ErrAssignmentConflict = errors.New("assignment_conflict")
	ErrValidation         = errors.New("validation_error")
	ErrInvalidState       = errors.New("invalid_state")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInternal           = errors.New("internal")

	// A multi-store operation stopped half way; re-running it finishes it.
	ErrPartialCompletion = errors.New("partial_completion")

	// For concurrency conflicts
	ErrRowVersionConflict = errors.New("row_version_conflict")

	// Too many failed sign-ins for one email.
	ErrRateLimitExceeded = errors.New("rate_limit_exceeded")

	// For external service failures (SendGrid, Twilio)
	ErrExternalServiceFailure = errors.New("external_service_failure")
)

// AppError is the structured error handed from services to controllers.
// Message is the short human-readable reason shown to the user.
type AppError struct {
	StatusCode int
	Code       string
	Message    string
	Kind       error
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the kind, so errors.Is(err, ErrScopeViolation) works.
func (e *AppError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func NewNotFound(message string) *AppError {
	return &AppError{StatusCode: http.StatusNotFound, Code: ErrCodeNotFound, Message: message, Kind: ErrNotFound}
}

func NewScopeViolation(message string) *AppError {
	return &AppError{StatusCode: http.StatusForbidden, Code: ErrCodeScopeViolation, Message: message, Kind: ErrScopeViolation}
}

func NewAssignmentConflict(code, message string) *AppError {
	if code == "" {
		code = ErrCodeAssignmentConflict
	}
	return &AppError{StatusCode: http.StatusConflict, Code: code, Message: message, Kind: ErrAssignmentConflict}
}

func NewValidation(code, message string) *AppError {
	if code == "" {
		code = ErrCodeValidation
	}
	return &AppError{StatusCode: http.StatusBadRequest, Code: code, Message: message, Kind: ErrValidation}
}

func NewInvalidState(message string) *AppError {
	return &AppError{StatusCode: http.StatusUnprocessableEntity, Code: ErrCodeInvalidState, Message: message, Kind: ErrInvalidState}
}

func NewUnauthenticated(code, message string) *AppError {
	return &AppError{StatusCode: http.StatusUnauthorized, Code: code, Message: message, Kind: ErrUnauthenticated}
}

func NewRowVersionConflict(message string) *AppError {
	return &AppError{StatusCode: http.StatusConflict, Code: ErrCodeRowVersionConflict, Message: message, Kind: ErrRowVersionConflict}
}

func NewPartialCompletion(message string, err error) *AppError {
	return &AppError{StatusCode: http.StatusServiceUnavailable, Code: ErrCodePartialCompletion, Message: message, Kind: ErrPartialCompletion, Err: err}
}

func NewRateLimitExceeded(message string) *AppError {
	return &AppError{StatusCode: http.StatusTooManyRequests, Code: ErrCodeRateLimitExceeded, Message: message, Kind: ErrRateLimitExceeded}
}

func NewInternal(message string, err error) *AppError {
	return &AppError{StatusCode: http.StatusInternalServerError, Code: ErrCodeInternal, Message: message, Kind: ErrInternal, Err: err}
}

// CodeOf returns the AppError code, or "" for foreign errors.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HandleAppError centralizes responding to AppErrors.
func HandleAppError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		RespondErrorWithCode(w, appErr.StatusCode, appErr.Code, appErr.Message, nil, appErr.Err)
	} else {
		// Fallback for unexpected error types
		RespondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred", nil, err)
	}
}
