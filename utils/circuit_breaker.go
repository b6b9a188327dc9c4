package utils

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned while the breaker rejects calls.
var ErrBreakerOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// CircuitBreaker guards the broadcast publish path. After maxFailures
// consecutive failures it opens for cooldown; the first call after the
// cooldown probes the channel again (half-open).
type CircuitBreaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration

	mutex    sync.Mutex
	state    State
	failures int
	openedAt time.Time
}

func NewCircuitBreaker(name string) *CircuitBreaker {
	return &CircuitBreaker{
		name:        name,
		maxFailures: 5,
		cooldown:    30 * time.Second,
		state:       StateClosed,
	}
}

// NewCircuitBreakerWithCooldown sets how long the breaker stays open before
// probing again. A non-positive cooldown keeps the default.
func NewCircuitBreakerWithCooldown(name string, cooldown time.Duration) *CircuitBreaker {
	cb := NewCircuitBreaker(name)
	if cooldown > 0 {
		cb.cooldown = cooldown
	}
	return cb
}

func (cb *CircuitBreaker) Run(fn func() error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := fn()
	cb.afterCall(err == nil)
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.currentState(time.Now())
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.currentState(time.Now()) == StateOpen {
		return ErrBreakerOpen
	}
	return nil
}

func (cb *CircuitBreaker) afterCall(success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if success {
		cb.failures = 0
		cb.state = StateClosed
		return
	}

	cb.failures++
	if cb.failures >= cb.maxFailures || cb.state == StateHalfOpen {
		cb.state = StateOpen
		cb.openedAt = time.Now()
	}
}

func (cb *CircuitBreaker) currentState(now time.Time) State {
	if cb.state == StateOpen && now.Sub(cb.openedAt) >= cb.cooldown {
		cb.state = StateHalfOpen
	}
	return cb.state
}
