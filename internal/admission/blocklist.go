package admission

import (
	"sync"
	"time"
)

// BlockEntry records one blocked client IP.
type BlockEntry struct {
	IP        string
	Reason    string
	BlockedAt time.Time
	ExpiresAt time.Time
}

// BlockList tracks authentication failures per client IP and blocks an IP
// once it crosses the threshold within the rolling window. Expiry is the
// only removal path. All checks and insertions for one IP happen under the
// list's lock so a request cannot slip in while a block is being applied.
type BlockList struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	duration  time.Duration
	failures  map[string][]time.Time
	blocked   map[string]BlockEntry
}

func NewBlockList(threshold int, window, duration time.Duration) *BlockList {
	if threshold <= 0 {
		threshold = 5
	}
	if window <= 0 {
		window = time.Hour
	}
	if duration <= 0 {
		duration = time.Hour
	}
	return &BlockList{
		threshold: threshold,
		window:    window,
		duration:  duration,
		failures:  make(map[string][]time.Time),
		blocked:   make(map[string]BlockEntry),
	}
}

// IsBlocked reports whether ip carries an unexpired block entry. Expired
// entries are evicted on the spot.
func (b *BlockList) IsBlocked(ip string, now time.Time) (BlockEntry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.blocked[ip]
	if !ok {
		return BlockEntry{}, false
	}
	if now.After(entry.ExpiresAt) {
		delete(b.blocked, ip)
		return BlockEntry{}, false
	}
	return entry, true
}

// RecordFailure notes one suspicious event (missing key, unknown key,
// insufficient permission) for ip. Failures older than the rolling window
// are discarded first; when the retained count reaches the threshold the IP
// is blocked for the configured duration and true is returned.
func (b *BlockList) RecordFailure(ip, reason string, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := pruneWindow(b.failures[ip], now, b.window)
	kept = append(kept, now)

	if len(kept) >= b.threshold {
		b.blocked[ip] = BlockEntry{
			IP:        ip,
			Reason:    reason,
			BlockedAt: now,
			ExpiresAt: now.Add(b.duration),
		}
		delete(b.failures, ip)
		return true
	}
	b.failures[ip] = kept
	return false
}

// Purge drops expired block entries and stale failure ledgers. Intended for
// a periodic janitor; IsBlocked already evicts lazily.
func (b *BlockList) Purge(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for ip, entry := range b.blocked {
		if now.After(entry.ExpiresAt) {
			delete(b.blocked, ip)
			removed++
		}
	}
	for ip, stamps := range b.failures {
		if kept := pruneWindow(stamps, now, b.window); len(kept) == 0 {
			delete(b.failures, ip)
		} else {
			b.failures[ip] = kept
		}
	}
	return removed
}
