package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorUnwrapping(t *testing.T) {
	assert.ErrorIs(t, NewValidationError("query", "required"), ErrInvalidInput)
	assert.ErrorIs(t, NewNotFoundError("paper", "p1"), ErrNotFound)
	assert.ErrorIs(t, NewRateLimitError("pubmed", 3), ErrRateLimited)
	assert.ErrorIs(t, NewExternalAPIError("pubmed", 500, "boom", nil), ErrServiceUnavailable)

	cause := errors.New("connection reset")
	assert.ErrorIs(t, NewExternalAPIError("pubmed", 0, "request failed", cause), cause)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "nil", err: nil, want: ErrorKindNone},
		{name: "deadline", err: fmt.Errorf("summary: %w", context.DeadlineExceeded), want: ErrorKindTimeout},
		{name: "timeout sentinel", err: ErrTimeout, want: ErrorKindTimeout},
		{name: "canceled", err: context.Canceled, want: ErrorKindCanceled},
		{name: "rate limited", err: NewRateLimitError("s2", 3), want: ErrorKindRateLimited},
		{name: "malformed", err: fmt.Errorf("rank: %w", ErrMalformedOutput), want: ErrorKindMalformed},
		{name: "external api", err: NewExternalAPIError("s2", 502, "bad gateway", errors.New("x")), want: ErrorKindUnavailable},
		{name: "cache", err: ErrCacheUnavailable, want: ErrorKindUnavailable},
		{name: "other", err: errors.New("boom"), want: ErrorKindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestRetryBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, RetryBackoff(0))
	assert.Equal(t, 3*time.Second, RetryBackoff(1))
	assert.Equal(t, 5*time.Second, RetryBackoff(2))
}
