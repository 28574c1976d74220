package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		err    *AppError
		kind   error
		status int
	}{
		{"not found", NewNotFound("missing"), ErrNotFound, http.StatusNotFound},
		{"scope", NewScopeViolation("nope"), ErrScopeViolation, http.StatusForbidden},
		{"conflict", NewAssignmentConflict(ErrCodeDuplicateIdentity, "taken"), ErrAssignmentConflict, http.StatusConflict},
		{"validation", NewValidation("", "bad"), ErrValidation, http.StatusBadRequest},
		{"state", NewInvalidState("already"), ErrInvalidState, http.StatusUnprocessableEntity},
		{"internal", NewInternal("boom", errors.New("db down")), ErrInternal, http.StatusInternalServerError},
		{"partial", NewPartialCompletion("retry", errors.New("db down")), ErrPartialCompletion, http.StatusServiceUnavailable},
		{"row version", NewRowVersionConflict("busy"), ErrRowVersionConflict, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var err error = tc.err
			assert.ErrorIs(t, err, tc.kind)
			assert.Equal(t, tc.status, tc.err.StatusCode)

			wrapped := fmt.Errorf("outer: %w", err)
			assert.ErrorIs(t, wrapped, tc.kind)
		})
	}
}

func TestAppErrorUnwrapsCause(t *testing.T) {
	err := NewInternal("write failed", ErrRowVersionConflict)
	assert.ErrorIs(t, err, ErrRowVersionConflict)
	assert.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, "write failed: row_version_conflict", err.Error())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeDuplicateDocument, CodeOf(NewAssignmentConflict(ErrCodeDuplicateDocument, "dup")))
	assert.Equal(t, ErrCodeAssignmentConflict, CodeOf(NewAssignmentConflict("", "dup")))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
}

func TestHandleAppError(t *testing.T) {
	SilenceLogger()

	rec := httptest.NewRecorder()
	HandleAppError(rec, NewScopeViolation("outside your company"))
	require.Equal(t, http.StatusForbidden, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrCodeScopeViolation, body.Code)
	assert.Equal(t, "outside your company", body.Message)

	rec = httptest.NewRecorder()
	HandleAppError(rec, errors.New("unexpected"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
