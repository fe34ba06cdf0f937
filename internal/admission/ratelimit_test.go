package admission

import (
	"sync"
	"testing"
	"time"
)

func TestRateLimiter_CeilingWithinWindow(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		decision := limiter.Allow("key", base.Add(time.Duration(i)*time.Second))
		if !decision.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	decision := limiter.Allow("key", base.Add(3*time.Second))
	if decision.Allowed {
		t.Fatal("request over ceiling should be rejected")
	}
	if got, want := decision.RetryAfter, 57*time.Second; got != want {
		t.Fatalf("expected retry-after %s, got %s", want, got)
	}
}

func TestRateLimiter_SlidingWindowNotFixed(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		limiter.Allow("key", base.Add(time.Duration(i)*time.Second))
	}
	if limiter.Allow("key", base.Add(3*time.Second)).Allowed {
		t.Fatal("window is full, request should be rejected")
	}

	// One window length after the first request, its slot frees up.
	decision := limiter.Allow("key", base.Add(61*time.Second))
	if !decision.Allowed {
		t.Fatal("request after the window slid should be allowed")
	}
}

func TestRateLimiter_RejectedRequestNotRecorded(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	limiter.Allow("key", base)
	limiter.Allow("key", base.Add(time.Second))

	// Only the admitted request occupies the window, so the slot frees
	// exactly one window after it, not after the rejected attempt.
	if !limiter.Allow("key", base.Add(61*time.Second)).Allowed {
		t.Fatal("rejected attempt must not extend the window")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if !limiter.Allow("a", now).Allowed {
		t.Fatal("first request for key a should be allowed")
	}
	if !limiter.Allow("b", now).Allowed {
		t.Fatal("key b must not share key a's window")
	}
	if limiter.Allow("a", now).Allowed {
		t.Fatal("key a is at its ceiling")
	}
}

func TestRateLimiter_ConcurrentLastSlot(t *testing.T) {
	limiter := NewRateLimiter(50, time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	allowed := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- limiter.Allow("key", now).Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	if count != 50 {
		t.Fatalf("expected exactly 50 admitted requests, got %d", count)
	}
}

func TestRateLimiter_SweepDropsIdleKeys(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	limiter.Allow("idle", base)
	limiter.Allow("busy", base.Add(2*time.Minute))

	removed := limiter.Sweep(base.Add(2 * time.Minute))
	if removed != 1 {
		t.Fatalf("expected 1 swept key, got %d", removed)
	}
	if len(limiter.buckets) != 1 {
		t.Fatalf("expected 1 retained bucket, got %d", len(limiter.buckets))
	}
}

func TestRateLimiter_RemainingAndReset(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	decision := limiter.Allow("key", base)
	if decision.Remaining != 2 {
		t.Fatalf("expected 2 remaining, got %d", decision.Remaining)
	}
	if got, want := decision.ResetAt, base.Add(time.Minute); !got.Equal(want) {
		t.Fatalf("expected reset at %s, got %s", want, got)
	}
}
