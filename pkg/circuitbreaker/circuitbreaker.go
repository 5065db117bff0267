package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitBreakerOpen is returned without calling fn while the breaker rejects work.
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// State is the breaker's position.
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
		return "half_open"
	}
	return "unknown"
}

// Config tunes when the breaker trips and how it probes for recovery.
type Config struct {
	// consecutive failures that open a closed breaker
	FailureThreshold int `yaml:"failure_threshold"`
	// successes in half-open needed to close again
	SuccessThreshold int `yaml:"success_threshold"`
	// how long the breaker stays open before probing
	Timeout time.Duration `yaml:"timeout"`
	// concurrent probes allowed while half-open
	HalfOpenMaxRequests int `yaml:"half_open_max_requests"`
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 3,
	}
}

// CircuitBreaker guards calls to the message broker from the outbox dispatcher.
type CircuitBreaker struct {
	config   Config
	listener func(from, to State)

	mu            sync.RWMutex
	state         State
	failures      int
	successes     int
	inFlight      int
	stateChangeAt time.Time
}

// NewCircuitBreaker builds a closed breaker. Zero fields in config take their defaults.
func NewCircuitBreaker(config Config) *CircuitBreaker {
	def := DefaultConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = def.SuccessThreshold
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = def.HalfOpenMaxRequests
	}
	return &CircuitBreaker{
		config:        config,
		state:         StateClosed,
		stateChangeAt: time.Now(),
	}
}

// WithStateListener registers fn to run on every state change. fn is called
// with the breaker's lock held and must not call back into the breaker.
func (cb *CircuitBreaker) WithStateListener(fn func(from, to State)) *CircuitBreaker {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.listener = fn
	return cb
}

// Execute runs fn unless the breaker is open, and feeds the result back
// into the breaker's state.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.recordFailure()
	} else {
		cb.recordSuccess()
	}
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.advance(time.Now())

	switch cb.state {
	case StateOpen:
		return ErrCircuitBreakerOpen
	case StateHalfOpen:
		if cb.inFlight >= cb.config.HalfOpenMaxRequests {
			return ErrCircuitBreakerOpen
		}
		cb.inFlight++
	}
	return nil
}

// advance applies the transitions that depend on counters or elapsed time.
func (cb *CircuitBreaker) advance(now time.Time) {
	switch cb.state {
	case StateOpen:
		if now.Sub(cb.stateChangeAt) >= cb.config.Timeout {
			cb.inFlight = 0
			cb.successes = 0
			cb.transition(StateHalfOpen, now)
		}
	case StateHalfOpen:
		if cb.successes >= cb.config.SuccessThreshold {
			cb.failures = 0
			cb.transition(StateClosed, now)
		}
	case StateClosed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.transition(StateOpen, now)
		}
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.failures++
	if cb.state == StateHalfOpen {
		// one failed probe is enough to reopen
		cb.inFlight = 0
		cb.transition(StateOpen, time.Now())
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.successes++
		cb.inFlight--
	}
}

func (cb *CircuitBreaker) transition(to State, now time.Time) {
	from := cb.state
	cb.state = to
	cb.stateChangeAt = now
	if cb.listener != nil && from != to {
		cb.listener(from, to)
	}
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset forces the breaker closed and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.successes = 0
	cb.inFlight = 0
	cb.transition(StateClosed, time.Now())
}
