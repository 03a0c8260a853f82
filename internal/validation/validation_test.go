package validation

import (
	"errors"
	"testing"

	"github.com/safar/go-bookstore/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type address struct {
	Email string `json:"email" validate:"required,email"`
}

type signup struct {
	Name     string  `json:"name" validate:"required"`
	Password string  `json:"password" validate:"min=6"`
	Address  address `json:"address"`
}

func TestStructValid(t *testing.T) {
	err := Struct(signup{Name: "Ada", Password: "secret1", Address: address{Email: "ada@example.com"}})
	assert.NoError(t, err)
}

func TestStructReportsFirstFieldByJSONName(t *testing.T) {
	err := Struct(signup{Name: "", Password: "secret1", Address: address{Email: "ada@example.com"}})

	var verr *apperr.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "name", verr.Field)
	assert.Equal(t, "is required", verr.Reason)
}

func TestStructNestedField(t *testing.T) {
	err := Struct(signup{Name: "Ada", Password: "secret1", Address: address{Email: "not-an-email"}})

	var verr *apperr.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "address.email", verr.Field)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestStructMinLength(t *testing.T) {
	err := Struct(signup{Name: "Ada", Password: "abc", Address: address{Email: "ada@example.com"}})

	var verr *apperr.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "password", verr.Field)
	assert.Equal(t, "must be at least 6", verr.Reason)
}
