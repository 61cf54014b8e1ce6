package api

import (
	"sync"
	"time"
)

// rateLimiter is a fixed-window per-key counter: each key gets limit requests
// per window, then 429 until the window rolls over. Windows are tracked
// in-process, which matches a single-binary deployment; a multi-instance
// deployment would move this to shared storage.
type rateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	seen   map[string]*rateWindow
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: window,
		seen:   make(map[string]*rateWindow),
	}
}

// allow records one request for key and reports whether it is within the
// limit. Expired windows restart counting from one.
func (l *rateLimiter) allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.seen[key]
	if !ok || now.After(w.resetAt) {
		l.seen[key] = &rateWindow{count: 1, resetAt: now.Add(l.window)}
		l.pruneLocked(now)
		return true
	}

	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// pruneLocked drops expired windows so the map doesn't grow with every IP
// ever seen. Called with the lock held, only on the new-window path.
func (l *rateLimiter) pruneLocked(now time.Time) {
	if len(l.seen) < 1024 {
		return
	}
	for k, w := range l.seen {
		if now.After(w.resetAt) {
			delete(l.seen, k)
		}
	}
}
