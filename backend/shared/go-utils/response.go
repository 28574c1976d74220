// backend/shared/go-utils/response.go
package utils

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

const (
	ErrCodeInvalidPayload          = "invalid_payload"
	ErrCodeValidation              = "validation_error"
	ErrCodeUnauthorized            = "unauthorized"
	ErrCodeTokenExpired            = "token_expired"
	ErrCodeInvalidCredentials      = "invalid_credentials"
	ErrCodeLockedAccount           = "locked_account"
	ErrCodeEmailNotConfirmed       = "email_not_confirmed"
	ErrCodeInternal                = "internal_server_error"
	ErrCodeNotFound                = "not_found"
	ErrCodeScopeViolation          = "scope_violation"
	ErrCodeAssignmentConflict      = "assignment_conflict"
	ErrCodeDuplicateIdentity       = "duplicate_identity"
	ErrCodeDuplicateDocument       = "duplicate_document"
	ErrCodeDuplicateRegistryNumber = "duplicate_registry_number"
	ErrCodeDuplicateUnitNumber     = "duplicate_unit_number"
	ErrCodeInvalidState            = "invalid_state"
	ErrCodeRowVersionConflict      = "row_version_conflict"
	ErrCodePartialCompletion       = "partial_completion"
	ErrCodeRateLimitExceeded       = "rate_limit_exceeded"
)

// ErrorResponse carries a standard code, a human-readable message and
// optional details.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// RespondErrorWithCode builds a JSON error response with a standard
// code and message. The optional `details` is included if non-nil.
func RespondErrorWithCode(
	w http.ResponseWriter,
	status int,
	errorCode string,
	publicMessage string,
	details any,
	devErrs ...error,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errBody := ErrorResponse{
		Code:    errorCode,
		Message: publicMessage,
	}
	if details != nil {
		errBody.Details = details
	}
	_ = json.NewEncoder(w).Encode(errBody)

	fields := logrus.Fields{"status": status, "code": errorCode}
	if len(devErrs) > 0 && devErrs[0] != nil {
		fields["error"] = devErrs[0].Error()
	}
	if status >= http.StatusInternalServerError {
		Logger.WithFields(fields).Error(publicMessage)
	} else {
		Logger.WithFields(fields).Info(publicMessage)
	}
}

// RespondWithJSON for successful cases
func RespondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
