// Package guard holds the process-wide admission controls shared by every
// component that talks to the LLM provider: a sliding-window rate limiter and
// a circuit breaker reacting to 429 responses. Both are safe for concurrent
// use; the workflow wires a single instance of each into all workers.
package guard

import (
	"sync"
	"time"
)

const (
	DefaultMaxRequests = 8
	DefaultWindow      = time.Second
)

// RateLimiter admits at most max requests in any sliding window. Wait blocks
// until admission; timestamps of admitted requests form a FIFO that is purged
// as entries age out of the window.
type RateLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	stamps []time.Time

	// injectable for tests
	now   func() time.Time
	sleep func(time.Duration)
}

// NewRateLimiter returns a limiter with the given capacity. Non-positive
// arguments fall back to the defaults (8 requests per second).
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	if max <= 0 {
		max = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RateLimiter{
		max:    max,
		window: window,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// Wait blocks until the caller may proceed, then records the admission.
// Concurrent callers are serialized; the longest possible sleep is one window.
func (l *RateLimiter) Wait() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.purge(now)

	if len(l.stamps) >= l.max {
		wait := l.window - now.Sub(l.stamps[0])
		if wait > 0 {
			l.sleep(wait)
			now = l.now()
			l.purge(now)
		}
	}
	l.stamps = append(l.stamps, l.now())
}

// purge drops timestamps older than the window. Caller holds the mutex.
func (l *RateLimiter) purge(now time.Time) {
	cut := 0
	for cut < len(l.stamps) && now.Sub(l.stamps[cut]) > l.window {
		cut++
	}
	if cut > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[cut:]...)
	}
}

// Pending reports how many admissions currently sit inside the window.
func (l *RateLimiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.purge(l.now())
	return len(l.stamps)
}
