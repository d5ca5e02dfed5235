package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type booking struct {
	Email    string   `json:"email" binding:"required,email"`
	Name     string   `json:"first_name" binding:"required,min=2,max=5"`
	Services []string `json:"service_ids" binding:"required,min=1"`
}

func TestValidate_UsesJSONNames(t *testing.T) {
	reasons := Default().Validate(&booking{Email: "nope", Name: "abcdefg", Services: []string{}})

	assert.ElementsMatch(t, []string{
		"email must be a valid email",
		"first_name must not exceed 5 characters",
		"service_ids must contain at least 1 item(s)",
	}, reasons)
}

func TestValidate_OK(t *testing.T) {
	reasons := New().Validate(&booking{Email: "a@b.co", Name: "Ana", Services: []string{"x"}})
	assert.Empty(t, reasons)
}

func TestReasons_NonValidationError(t *testing.T) {
	assert.Equal(t, []string{"boom"}, Reasons(errors.New("boom")))
}
