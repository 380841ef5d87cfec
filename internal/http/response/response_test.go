package response

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validationSample struct {
	Email string `validate:"required,email"`
	Plan  string `validate:"oneof=aura a7fx"`
	Days  int    `validate:"min=1,max=3650"`
	ID    string `validate:"uuid"`
}

func TestValidationError(t *testing.T) {
	v := validator.New()
	err := v.Struct(validationSample{Plan: "gold", Days: 0, ID: "x"})
	require.Error(t, err)

	resp := ValidationError(err.(validator.ValidationErrors))

	assert.False(t, resp.Success)
	assert.Equal(t, CodeValidation, resp.ErrorCode)
	assert.Contains(t, resp.Message, "field Email is a required field")
	assert.Contains(t, resp.Message, "field Plan must be one of [aura a7fx]")
	assert.Contains(t, resp.Message, "field Days must be at least 1")
	assert.Contains(t, resp.Message, "field ID can contain only uuid")
}

func TestDenied_JSONShape(t *testing.T) {
	body, err := json.Marshal(Denied("NO_SUBSCRIPTION", "An active subscription is required to access the Community.", "/subscription"))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"success": false,
		"errorCode": "NO_SUBSCRIPTION",
		"message": "An active subscription is required to access the Community.",
		"redirect": "/subscription"
	}`, string(body))
}

func TestError_OmitsRedirect(t *testing.T) {
	body, err := json.Marshal(Error(CodeBadRequest, "failed to decode request"))
	require.NoError(t, err)
	assert.NotContains(t, string(body), "redirect")
}
