package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{NotFound("request", nil), http.StatusNotFound},
		{Validation("bad input", nil), http.StatusBadRequest},
		{Unauthorized(""), http.StatusUnauthorized},
		{Forbidden("no"), http.StatusForbidden},
		{RequestUnavailable(), http.StatusConflict},
		{InvalidTransition("pending", "completed"), http.StatusUnprocessableEntity},
		{DonorUnavailable(), http.StatusUnprocessableEntity},
		{IncompatibleBloodType("A+", "O-"), http.StatusUnprocessableEntity},
		{Internal(errors.New("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.StatusCode(), "code %d", tt.err.Code)
	}
}

func TestCodeUnwrapsWrappedErrors(t *testing.T) {
	err := fmt.Errorf("handler: %w", RequestUnavailable())
	assert.Equal(t, ErrRequestUnavailable, Code(err))
	assert.True(t, Is(err, ErrRequestUnavailable))
	assert.False(t, Is(err, ErrNotFound))

	assert.Equal(t, ErrInternal, Code(errors.New("plain")))
}

func TestInvalidTransitionNamesBothStates(t *testing.T) {
	err := InvalidTransition("cancelled", "completed")
	assert.Contains(t, err.Message, "cancelled")
	assert.Contains(t, err.Message, "completed")
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("row not found")
	err := NotFound("donor", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "donor not found")
}
