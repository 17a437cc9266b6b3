package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State is the circuit breaker state (Closed, Open, HalfOpen).
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
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Do when the circuit is open and the cooldown has not
// elapsed. Callers treat it like any upstream failure and fall back.
var ErrOpen = errors.New("circuit breaker open")

// Breaker protects the upstream live path: it opens after repeated failures,
// rejects calls while open, and lets probe calls through after a cooldown.
type Breaker struct {
	mu              sync.Mutex
	state           State
	failures        int
	probeSuccesses  int
	lastFailureTime time.Time

	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	onStateChange    func(from, to State)
}

// Config holds breaker parameters. Zero values pick conservative defaults.
type Config struct {
	FailureThreshold int           // consecutive failures before opening (default 5)
	SuccessThreshold int           // half-open successes before closing (default 2)
	Cooldown         time.Duration // open duration before probing (default 30s)
	OnStateChange    func(from, to State)
}

// New creates a Breaker with the given config.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		cooldown:         cfg.Cooldown,
		onStateChange:    cfg.OnStateChange,
	}
}

// Do runs fn when the circuit allows it. Returns ErrOpen without calling fn
// while the circuit is open and cooling down. Failures and successes recorded
// here drive the state machine.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn()
	b.record(err)
	return err
}

// admit decides whether a call may proceed, transitioning open -> half-open
// once the cooldown has elapsed.
func (b *Breaker) admit() error {
	b.mu.Lock()
	if b.state != StateOpen {
		b.mu.Unlock()
		return nil
	}
	if time.Since(b.lastFailureTime) < b.cooldown {
		b.mu.Unlock()
		return ErrOpen
	}
	b.state = StateHalfOpen
	b.probeSuccesses = 0
	cb := b.onStateChange
	b.mu.Unlock()
	if cb != nil {
		cb(StateOpen, StateHalfOpen)
	}
	return nil
}

// record updates the state machine with a call outcome.
func (b *Breaker) record(err error) {
	b.mu.Lock()

	if err != nil {
		b.failures++
		b.lastFailureTime = time.Now()
		if b.state == StateHalfOpen || b.failures >= b.failureThreshold {
			from := b.state
			b.state = StateOpen
			b.failures = 0
			cb := b.onStateChange
			b.mu.Unlock()
			if cb != nil && from != StateOpen {
				cb(from, StateOpen)
			}
			return
		}
		b.mu.Unlock()
		return
	}

	b.failures = 0
	if b.state == StateHalfOpen {
		b.probeSuccesses++
		if b.probeSuccesses >= b.successThreshold {
			from := b.state
			b.state = StateClosed
			b.probeSuccesses = 0
			cb := b.onStateChange
			b.mu.Unlock()
			if cb != nil {
				cb(from, StateClosed)
			}
			return
		}
	}
	b.mu.Unlock()
}

// State returns the current state (for metrics and tests).
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
