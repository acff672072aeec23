package reliability

import (
	"sync"
	"time"
)

// State is the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker refuses calls after repeated failures until a cooldown has passed
type CircuitBreaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	successes int
	trials    int
	openedAt  time.Time

	totalAllowed  int64
	totalRefused  int64
	totalFailures int64

	name             string
	failureThreshold int
	successThreshold int
	halfOpenRequests int
	cooldown         time.Duration
	now              func() time.Time
}

// CircuitBreakerOption configures the circuit breaker
type CircuitBreakerOption func(*CircuitBreaker)

// WithFailureThreshold sets how many consecutive failures open the circuit
func WithFailureThreshold(threshold int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		if threshold > 0 {
			cb.failureThreshold = threshold
		}
	}
}

// WithSuccessThreshold sets how many half-open successes close the circuit
func WithSuccessThreshold(threshold int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		if threshold > 0 {
			cb.successThreshold = threshold
		}
	}
}

// WithCooldown sets how long the circuit stays open
func WithCooldown(cooldown time.Duration) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.cooldown = cooldown
	}
}

// WithHalfOpenRequests sets how many trial calls a half-open circuit admits
func WithHalfOpenRequests(requests int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		if requests > 0 {
			cb.halfOpenRequests = requests
		}
	}
}

// WithName names the breaker in errors and stats
func WithName(name string) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.name = name
	}
}

// NewCircuitBreaker creates a closed circuit breaker
func NewCircuitBreaker(options ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		state:            StateClosed,
		name:             "default",
		failureThreshold: 5,
		successThreshold: 2,
		halfOpenRequests: 2,
		cooldown:         30 * time.Second,
		now:              time.Now,
	}

	for _, opt := range options {
		opt(cb)
	}

	return cb
}

// Allow admits or refuses one call. Every admitted call must be followed by
// Record, or by Release when the call never happened.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
	case StateOpen:
		next := cb.openedAt.Add(cb.cooldown)
		if cb.now().Before(next) {
			cb.totalRefused++
			return cb.refusal(next)
		}
		cb.state = StateHalfOpen
		cb.successes = 0
		cb.trials = 1
	case StateHalfOpen:
		if cb.trials >= cb.halfOpenRequests {
			cb.totalRefused++
			return cb.refusal(cb.now())
		}
		cb.trials++
	default:
		return ErrUnknownState
	}

	cb.totalAllowed++
	return nil
}

// Record reports the outcome of an admitted call
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.totalFailures++
		cb.failures++
		switch cb.state {
		case StateClosed:
			if cb.failures >= cb.failureThreshold {
				cb.open()
			}
		case StateHalfOpen:
			cb.open()
		}
		return
	}

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.state = StateClosed
			cb.failures = 0
			cb.trials = 0
		}
	}
}

// Release returns an admission whose call was abandoned without an outcome
func (cb *CircuitBreaker) Release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen && cb.trials > 0 {
		cb.trials--
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the circuit and clears the failure counters
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.trials = 0
}

// Stats is a snapshot of the breaker counters
type Stats struct {
	Name          string
	State         State
	Failures      int
	TotalAllowed  int64
	TotalRefused  int64
	TotalFailures int64
}

// Stats returns a snapshot of the breaker counters
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Stats{
		Name:          cb.name,
		State:         cb.state,
		Failures:      cb.failures,
		TotalAllowed:  cb.totalAllowed,
		TotalRefused:  cb.totalRefused,
		TotalFailures: cb.totalFailures,
	}
}

func (cb *CircuitBreaker) open() {
	cb.state = StateOpen
	cb.openedAt = cb.now()
	cb.successes = 0
	cb.trials = 0
}

func (cb *CircuitBreaker) refusal(next time.Time) error {
	return &CircuitBreakerError{
		Name:             cb.name,
		State:            cb.state,
		Failures:         cb.failures,
		FailureThreshold: cb.failureThreshold,
		NextAttempt:      next,
	}
}
