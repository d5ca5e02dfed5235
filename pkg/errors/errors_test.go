package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{NewNotFound("appointment", nil), http.StatusNotFound},
		{BadRequest("bad", nil), http.StatusBadRequest},
		{NewValidation("x is required"), http.StatusBadRequest},
		{Unauthorized(""), http.StatusUnauthorized},
		{Forbidden(""), http.StatusForbidden},
		{NewConflict("dup"), http.StatusConflict},
		{Internal(errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.StatusCode(), tt.err.Message)
	}
}

func TestErrorMessage(t *testing.T) {
	err := NewValidation("a is required", "b must be a valid email")
	assert.Equal(t, "validation failed: a is required, b must be a valid email", err.Error())

	wrapped := NewNotFound("patient", errors.New("sql: no rows"))
	assert.Equal(t, "patient not found: sql: no rows", wrapped.Error())
	assert.Equal(t, "forbidden", Forbidden("").Message)
}

func TestAsAndHasCode(t *testing.T) {
	cause := errors.New("root")
	err := fmt.Errorf("layer: %w", NewNotFound("doctor", cause))

	appErr, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, ErrNotFound, appErr.Code)
	assert.ErrorIs(t, err, cause)
	assert.True(t, HasCode(err, ErrNotFound))
	assert.False(t, HasCode(err, ErrConflict))

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}
