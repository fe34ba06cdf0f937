package admission

import (
	"sync"
	"time"
)

// RateLimiter enforces a per-key ceiling over a sliding window. Each key
// retains the timestamps of its admitted requests; entries older than the
// window are pruned on every check. Check-and-record happens under one lock
// so two concurrent requests can never both take the last slot.
type RateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	ceiling int
	buckets map[string][]time.Time
}

// RateDecision reports the outcome of one admission attempt against the
// window. RetryAfter and ResetAt are populated whether or not the request
// was allowed, so the HTTP layer can always emit rate headers.
type RateDecision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is how long until a slot frees up: the oldest retained
	// timestamp plus the window length, minus now.
	RetryAfter time.Duration
	ResetAt    time.Time
}

func NewRateLimiter(ceiling int, window time.Duration) *RateLimiter {
	if ceiling <= 0 {
		ceiling = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		window:  window,
		ceiling: ceiling,
		buckets: make(map[string][]time.Time),
	}
}

// Allow prunes the key's window, rejects when the ceiling is reached and
// otherwise records now as an admitted request.
func (l *RateLimiter) Allow(key string, now time.Time) RateDecision {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := pruneWindow(l.buckets[key], now, l.window)

	if len(kept) >= l.ceiling {
		l.buckets[key] = kept
		resetAt := kept[0].Add(l.window)
		return RateDecision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: resetAt.Sub(now),
			ResetAt:    resetAt,
		}
	}

	kept = append(kept, now)
	l.buckets[key] = kept
	return RateDecision{
		Allowed:   true,
		Remaining: l.ceiling - len(kept),
		ResetAt:   kept[0].Add(l.window),
	}
}

// Ceiling returns the configured per-window request ceiling.
func (l *RateLimiter) Ceiling() int {
	return l.ceiling
}

// Sweep drops windows that no longer retain any timestamps so idle keys do
// not pin memory. Intended for a periodic janitor; pruning on access keeps
// correctness regardless.
func (l *RateLimiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, stamps := range l.buckets {
		if kept := pruneWindow(stamps, now, l.window); len(kept) == 0 {
			delete(l.buckets, key)
			removed++
		} else {
			l.buckets[key] = kept
		}
	}
	return removed
}

func pruneWindow(stamps []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	idx := 0
	for idx < len(stamps) && !stamps[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return stamps
	}
	return append(stamps[:0:0], stamps[idx:]...)
}
