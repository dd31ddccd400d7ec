package routing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteError_Is(t *testing.T) {
	err := NewRouteError(KindNoRouteFound, "ZERO_RESULTS", nil)
	wrapped := fmt.Errorf("failed to select destination: %w", err)

	assert.ErrorIs(t, wrapped, &RouteError{Kind: KindNoRouteFound})
	assert.ErrorIs(t, wrapped, &RouteError{Kind: KindNoRouteFound, Code: "ZERO_RESULTS"})
	assert.NotErrorIs(t, wrapped, &RouteError{Kind: KindNoRouteFound, Code: "NOT_FOUND"})
	assert.NotErrorIs(t, wrapped, &RouteError{Kind: KindProvider})
	assert.Equal(t, KindNoRouteFound, KindOf(wrapped))
	assert.Contains(t, err.Error(), "ZERO_RESULTS")
}

func TestRouteError_Unwrap(t *testing.T) {
	err := NewRouteError(KindNetwork, "", context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "network")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewRouteError(KindNetwork, "", errors.New("connection reset"))))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", NewRouteError(KindNetwork, "", nil))))
	assert.False(t, IsRetryable(NewRouteError(KindProvider, "500", nil)))
	assert.False(t, IsRetryable(NewRouteError(KindDecode, "", nil)))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}
