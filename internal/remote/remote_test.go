package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusOK, nil},
		{http.StatusBadRequest, nil},
		{http.StatusUnauthorized, ErrNotAuthorized},
		{http.StatusForbidden, ErrNotAuthorized},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusGone, ErrNotFound},
		{http.StatusTooManyRequests, ErrTransient},
		{http.StatusInternalServerError, ErrTransient},
		{http.StatusServiceUnavailable, ErrTransient},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			a := assert.New(t)
			a.Equal(tc.want, Classify(tc.status))
		})
	}
}

func TestError(t *testing.T) {
	a := assert.New(t)

	err := fmt.Errorf("wrapped: %w", &Error{Op: "videos.list", StatusCode: 403, Reason: "quotaExceeded", Err: ErrNotAuthorized})

	a.ErrorIs(err, ErrNotAuthorized)
	a.False(errors.Is(err, ErrTransient))
	a.EqualError(err, "wrapped: videos.list: remote: not authorized (status 403, quotaExceeded)")

	var re *Error
	if a.ErrorAs(err, &re) {
		a.Equal("quotaExceeded", re.Reason)
	}
}

func TestIsRetryable(t *testing.T) {
	a := assert.New(t)

	a.True(IsRetryable(&Error{Op: "x", Err: ErrTransient}))
	a.False(IsRetryable(&Error{Op: "x", Err: ErrNotFound}))
	a.False(IsRetryable(context.Canceled))
	a.False(IsRetryable(fmt.Errorf("%w: %w", ErrTransient, context.DeadlineExceeded)))
}
