package throttle

import (
	"sync"
	"time"
)

// Admission is the answer to an admission check. When Allowed is false,
// Wait is the time until the oldest recorded action leaves the window.
type Admission struct {
	Allowed bool
	Wait    time.Duration
}

// RateLimiter admits at most max actions per sliding window.
type RateLimiter struct {
	max     int
	window  time.Duration
	mu      sync.Mutex
	times   []time.Time
	timeNow func() time.Time
}

func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return NewRateLimiterWithClock(max, window, time.Now)
}

// NewRateLimiterWithClock creates a limiter with an injectable clock.
func NewRateLimiterWithClock(max int, window time.Duration, timeNow func() time.Time) *RateLimiter {
	if max < 1 {
		max = 1
	}
	return &RateLimiter{
		max:     max,
		window:  window,
		times:   make([]time.Time, 0, max),
		timeNow: timeNow,
	}
}

// Admit checks the window without recording anything.
func (r *RateLimiter) Admit() Admission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.admitLocked(r.timeNow())
}

// Record counts one action at the current time.
func (r *RateLimiter) Record() {
	r.recordAt(r.timeNow())
}

func (r *RateLimiter) recordAt(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.times = append(r.times, t)
}

// Forget removes one action recorded at t, for an action that did not
// happen after all. It reports whether a matching timestamp was found.
func (r *RateLimiter) Forget(t time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.times) - 1; i >= 0; i-- {
		if r.times[i].Equal(t) {
			r.times = append(r.times[:i], r.times[i+1:]...)
			return true
		}
	}
	return false
}

// TryAcquire checks and records in one step.
func (r *RateLimiter) TryAcquire() Admission {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.timeNow()
	a := r.admitLocked(now)
	if a.Allowed {
		r.times = append(r.times, now)
	}
	return a
}

func (r *RateLimiter) admitLocked(now time.Time) Admission {
	r.removeExpired(now)
	if len(r.times) < r.max {
		return Admission{Allowed: true}
	}
	wait := r.times[0].Add(r.window).Sub(now)
	if wait < 0 {
		wait = 0
	}
	return Admission{Wait: wait}
}

// removeExpired drops timestamps that are outside the window.
// Must be called with lock held.
func (r *RateLimiter) removeExpired(now time.Time) {
	cutoff := now.Add(-r.window)
	expired := 0
	for _, t := range r.times {
		if !t.After(cutoff) {
			expired++
		} else {
			break
		}
	}
	r.times = r.times[expired:]
}

type LimiterStats struct {
	InWindow      int       `json:"in_window"`
	Remaining     int       `json:"remaining"`
	NextAllowedAt time.Time `json:"next_allowed_at"`
}

func (r *RateLimiter) Stats() LimiterStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.timeNow()
	a := r.admitLocked(now)
	st := LimiterStats{
		InWindow:      len(r.times),
		Remaining:     r.max - len(r.times),
		NextAllowedAt: now.Add(a.Wait),
	}
	if st.Remaining < 0 {
		st.Remaining = 0
	}
	return st
}
