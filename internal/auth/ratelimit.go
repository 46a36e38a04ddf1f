package auth

import (
	"sync"
	"time"
)

// sweepEvery bounds how often idle clients are purged from the limiter.
const sweepEvery = 1024

// RateLimiter admits at most limit requests per key within any sliding window.
// Rejected requests are not recorded, so a client that backs off regains
// access once its oldest admitted request ages out.
type RateLimiter struct {
	window time.Duration
	limit  int
	now    func() time.Time

	mu    sync.Mutex
	hits  map[string][]time.Time
	calls int
}

// NewRateLimiter builds a limiter. limit <= 0 disables limiting.
func NewRateLimiter(window time.Duration, limit int) *RateLimiter {
	return &RateLimiter{
		window: window,
		limit:  limit,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

// WithClock replaces the limiter's clock.
func (l *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	l.now = now
	return l
}

// Allow records a request for key and reports whether it is admitted.
func (l *RateLimiter) Allow(key string) bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweep(now)
	}

	recent := l.prune(l.hits[key], now)
	if len(recent) >= l.limit {
		l.hits[key] = recent
		return false
	}
	l.hits[key] = append(recent, now)
	return true
}

// prune drops timestamps that have left the window. Timestamps are
// appended in order so the live ones form a suffix.
func (l *RateLimiter) prune(ts []time.Time, now time.Time) []time.Time {
	i := 0
	for i < len(ts) && now.Sub(ts[i]) >= l.window {
		i++
	}
	return ts[i:]
}

func (l *RateLimiter) sweep(now time.Time) {
	for k, ts := range l.hits {
		if live := l.prune(ts, now); len(live) == 0 {
			delete(l.hits, k)
		} else {
			l.hits[k] = live
		}
	}
}

// Tracked returns the number of clients currently held in memory.
func (l *RateLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}
