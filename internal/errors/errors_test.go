package errors_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/isdelr/readtrack/internal/errors"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := errors.NotFoundf("book %s not found", "b1")

	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.False(t, errors.Is(err, errors.ErrValidation))
	assert.Equal(t, "book b1 not found", err.Error())
}

func TestError_WrappedStillMatches(t *testing.T) {
	err := fmt.Errorf("lookup: %w", errors.Validation("rating must be between 1 and 5"))

	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Equal(t, http.StatusBadRequest, errors.StatusOf(err))
}

func TestError_CauseIsUnwrapped(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := errors.Gateway(cause, "search unavailable")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "search unavailable: dial tcp: timeout", err.Error())
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.ErrNotFound, http.StatusNotFound},
		{errors.ErrConflict, http.StatusConflict},
		{errors.ErrInvalidCredentials, http.StatusUnauthorized},
		{errors.ErrUnauthorized, http.StatusUnauthorized},
		{errors.Unauthorized("Authentication required"), http.StatusUnauthorized},
		{errors.ErrForbidden, http.StatusForbidden},
		{errors.Forbidden("Staff access required"), http.StatusForbidden},
		{errors.ErrGateway, http.StatusBadGateway},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errors.StatusOf(tt.err), tt.err.Error())
	}
}
