package guard

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// BreakerState enumerates the circuit breaker's three states.
type BreakerState int

const (
	Closed BreakerState = iota
	Open
	HalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	}
	return "unknown"
}

const (
	DefaultFailureThreshold = 3
	DefaultBreakerTimeout   = 120 * time.Second
	DefaultHalfOpenMax      = 3
)

// CircuitBreaker halts outbound LLM calls after a run of consecutive 429
// failures. Callers must consult CanMakeRequest before each call and report
// the outcome with RecordRequest/RecordSuccess/RecordFailure. When the
// breaker refuses a request the caller skips its unit of work rather than
// blocking: recovery is clock-driven by the next caller, no goroutine parks.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	timeout          time.Duration
	halfOpenMax      int

	state             BreakerState
	failures          int
	openedAt          time.Time
	halfOpenRequests  int
	halfOpenSuccesses int

	now func() time.Time
}

// NewCircuitBreaker returns a closed breaker. Non-positive arguments fall
// back to the defaults (3 failures, 120s timeout, 3 half-open probes).
func NewCircuitBreaker(failureThreshold int, timeout time.Duration, halfOpenMax int) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	if timeout <= 0 {
		timeout = DefaultBreakerTimeout
	}
	if halfOpenMax <= 0 {
		halfOpenMax = DefaultHalfOpenMax
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		timeout:          timeout,
		halfOpenMax:      halfOpenMax,
		now:              time.Now,
	}
}

// CanMakeRequest reports whether a call may proceed. An OPEN breaker whose
// timeout has elapsed flips to HALF_OPEN and admits the probe.
func (b *CircuitBreaker) CanMakeRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) >= b.timeout {
			b.state = HalfOpen
			b.halfOpenRequests = 0
			b.halfOpenSuccesses = 0
			return true
		}
		return false
	case HalfOpen:
		return b.halfOpenRequests < b.halfOpenMax
	default:
		return true
	}
}

// RecordRequest notes that a call was actually issued. Only HALF_OPEN cares:
// it counts probes against the probe budget.
func (b *CircuitBreaker) RecordRequest() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == HalfOpen {
		b.halfOpenRequests++
	}
}

// RecordSuccess resets the consecutive-failure count in CLOSED and closes the
// circuit once every HALF_OPEN probe has succeeded.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case HalfOpen:
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.halfOpenMax {
			b.state = Closed
			b.failures = 0
			b.halfOpenRequests = 0
			b.halfOpenSuccesses = 0
		}
	case Closed:
		b.failures = 0
	}
}

// RecordFailure counts a failed call. Only 429-class failures advance the
// consecutive-failure counter; any failure during HALF_OPEN re-opens the
// circuit immediately.
func (b *CircuitBreaker) RecordFailure(is429 bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if is429 {
		b.failures++
		b.openedAt = b.now()
		if b.failures >= b.failureThreshold && b.state == Closed {
			b.state = Open
			log.Warn().Int("failures", b.failures).Msg("circuit breaker open after consecutive 429s")
		}
	}
	if b.state == HalfOpen {
		b.state = Open
		b.openedAt = b.now()
	}
}

// State returns the current breaker state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset returns the breaker to its initial closed state.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
	b.openedAt = time.Time{}
	b.halfOpenRequests = 0
	b.halfOpenSuccesses = 0
}
