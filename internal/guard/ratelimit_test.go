package guard

import (
	"sync"
	"testing"
	"time"
)

// fakeClock advances only when slept on, so limiter tests run instantly.
type fakeClock struct {
	mu  sync.Mutex
	t   time.Time
	nap []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (f *fakeClock) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) sleep(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nap = append(f.nap, d)
	f.t = f.t.Add(d)
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func TestRateLimiter_AdmitsUpToMaxWithoutSleeping(t *testing.T) {
	clk := newFakeClock()
	l := NewRateLimiter(3, time.Second)
	l.now, l.sleep = clk.now, clk.sleep

	for i := 0; i < 3; i++ {
		l.Wait()
	}
	if len(clk.nap) != 0 {
		t.Fatalf("expected no sleeps below capacity, got %v", clk.nap)
	}
	if got := l.Pending(); got != 3 {
		t.Fatalf("pending = %d, want 3", got)
	}
}

func TestRateLimiter_SleepsUntilOldestExpires(t *testing.T) {
	clk := newFakeClock()
	l := NewRateLimiter(2, time.Second)
	l.now, l.sleep = clk.now, clk.sleep

	l.Wait()
	clk.advance(300 * time.Millisecond)
	l.Wait()
	l.Wait() // over capacity: must sleep out the oldest stamp

	if len(clk.nap) != 1 {
		t.Fatalf("expected exactly one sleep, got %v", clk.nap)
	}
	if clk.nap[0] != 700*time.Millisecond {
		t.Fatalf("sleep = %v, want 700ms", clk.nap[0])
	}
}

func TestRateLimiter_WindowNeverExceeded(t *testing.T) {
	clk := newFakeClock()
	l := NewRateLimiter(4, time.Second)
	l.now, l.sleep = clk.now, clk.sleep

	for i := 0; i < 20; i++ {
		l.Wait()
		if got := l.Pending(); got > 4 {
			t.Fatalf("window holds %d admissions, cap is 4", got)
		}
		clk.advance(50 * time.Millisecond)
	}
}

func TestRateLimiter_PurgesExpired(t *testing.T) {
	clk := newFakeClock()
	l := NewRateLimiter(2, time.Second)
	l.now, l.sleep = clk.now, clk.sleep

	l.Wait()
	l.Wait()
	clk.advance(2 * time.Second)
	l.Wait()
	if len(clk.nap) != 0 {
		t.Fatalf("expired stamps must not force a sleep, got %v", clk.nap)
	}
}
