package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatorCollectsEveryFailure(t *testing.T) {
	v := NewValidator().
		Field("document_id", "  ", Required, UUID).
		Field("comments", strings.Repeat("é", 11), MaxLength(10)).
		Field("custom_prompt", strings.Repeat("é", 10), MaxLength(10))

	assert.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 3)
	assert.Contains(t, v.ErrorMessage(), "'document_id': is required")
	assert.Contains(t, v.ErrorMessage(), "'comments': must be at most 10 characters")
	assert.ErrorIs(t, v.Err(), ErrInvalidInput)
}

func TestValidatorPasses(t *testing.T) {
	v := NewValidator().Field("document_id", "6f1c1d1e-8f3a-4d55-9a3e-0c1b2a3d4e5f", Required, UUID)
	assert.False(t, v.HasErrors())
	assert.NoError(t, v.Err())
	assert.Empty(t, v.ErrorMessage())
}
