package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerStaysClosedOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker("test")

	for i := 0; i < 10; i++ {
		require.NoError(t, cb.Run(func() error { return nil }))
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker("test")
	boom := errors.New("publish failed")

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, cb.Run(func() error { return boom }), boom)
	}
	assert.Equal(t, StateOpen, cb.State())

	// While open, calls are rejected without running fn.
	ran := false
	err := cb.Run(func() error { ran = true; return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, ran)
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test")
	boom := errors.New("publish failed")

	for i := 0; i < 4; i++ {
		cb.Run(func() error { return boom })
	}
	require.NoError(t, cb.Run(func() error { return nil }))

	// The streak was broken, four more failures do not open it.
	for i := 0; i < 4; i++ {
		cb.Run(func() error { return boom })
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerCooldownOverride(t *testing.T) {
	cb := NewCircuitBreakerWithCooldown("test", 42*time.Millisecond)
	assert.Equal(t, 42*time.Millisecond, cb.cooldown)

	// A non-positive override keeps the default.
	cb = NewCircuitBreakerWithCooldown("test", 0)
	assert.Equal(t, 30*time.Second, cb.cooldown)
}

func TestCircuitBreakerHalfOpenProbe(t *testing.T) {
	cb := NewCircuitBreakerWithCooldown("test", 10*time.Millisecond)
	boom := errors.New("publish failed")

	for i := 0; i < 5; i++ {
		cb.Run(func() error { return boom })
	}
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(15 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	// A failed probe reopens immediately.
	cb.Run(func() error { return boom })
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(15 * time.Millisecond)

	// A successful probe closes the breaker.
	require.NoError(t, cb.Run(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}
