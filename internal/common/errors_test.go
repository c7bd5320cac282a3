package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", NotFound("document missing"), http.StatusNotFound},
		{"invalid", InvalidInput("bad id"), http.StatusBadRequest},
		{"conflict", Conflict("already processing"), http.StatusConflict},
		{"auth", AuthError("no secret", nil), http.StatusBadGateway},
		{"inference wrapped", fmt.Errorf("invoke: %w", InferenceError("status 500", errors.New("boom"))), http.StatusBadGateway},
		{"store", StoreError("insert failed", errors.New("disk")), http.StatusInternalServerError},
		{"plain", errors.New("x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestAppErrorChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := InferenceError("invoke failed", cause)

	assert.ErrorIs(t, err, ErrInference)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeInference, ErrorCode(fmt.Errorf("wrap: %w", err)))
	assert.Contains(t, err.Error(), "invoke failed")
	assert.Equal(t, "INTERNAL", ErrorCode(cause))
}

func TestParseID(t *testing.T) {
	_, err := ParseID("id", "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidInput)

	id, err := ParseID("id", "6f1c7c1e-3b8e-4d5e-9a61-0c3c2f2b8a10")
	assert.NoError(t, err)
	assert.Equal(t, "6f1c7c1e-3b8e-4d5e-9a61-0c3c2f2b8a10", id.String())
}
