package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("price", "price cannot be negative")

	assert.Equal(t, "validation failed on price: price cannot be negative", err.Error())
	assert.Equal(t, "price cannot be negative", err.Details["price"])
	assert.True(t, IsValidation(err))
	assert.True(t, IsValidation(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsValidation(ErrNotFound))
}

func TestConfigUnavailable(t *testing.T) {
	err := ConfigUnavailable(errors.New("connection refused"))
	assert.True(t, errors.Is(err, ErrConfigUnavailable))
	assert.Contains(t, err.Error(), "connection refused")

	assert.Equal(t, ErrConfigUnavailable, ConfigUnavailable(nil))
}
