package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	maxEntries      = 10000
	cleanupInterval = time.Minute
	entryTTL        = 5 * time.Minute
)

// Decision is the outcome of a rate-limit check. A throttled decision is a
// result, not an error: callers surface RetryAfter as backoff guidance.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Check(ctx context.Context, key string) Decision
}

type memoryEntry struct {
	timestamps []time.Time
	lastAccess time.Time
}

// MemoryLimiter is a per-instance sliding-window limiter. It is the fallback
// when no shared counter store is available; limiting is then approximate
// across instances, which is an accepted degradation for pairing-code abuse
// protection.
type MemoryLimiter struct {
	mu          sync.Mutex
	store       map[string]*memoryEntry
	limit       int
	window      time.Duration
	lastCleanup time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		store:       make(map[string]*memoryEntry),
		limit:       limit,
		window:      window,
		lastCleanup: time.Now(),
	}
}

func (l *MemoryLimiter) cleanup() {
	now := time.Now()
	if now.Sub(l.lastCleanup) < cleanupInterval {
		return
	}
	l.lastCleanup = now

	for key, entry := range l.store {
		if now.Sub(entry.lastAccess) > entryTTL {
			delete(l.store, key)
		}
	}

	if len(l.store) > maxEntries {
		evict := make([]string, 0, len(l.store)/5)
		for key := range l.store {
			evict = append(evict, key)
			if len(evict) >= len(l.store)/5 {
				break
			}
		}
		for _, key := range evict {
			delete(l.store, key)
		}
	}
}

func (l *MemoryLimiter) Check(ctx context.Context, key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cleanup()

	now := time.Now()
	windowStart := now.Add(-l.window)

	entry, exists := l.store[key]
	if !exists {
		entry = &memoryEntry{timestamps: make([]time.Time, 0, l.limit)}
		l.store[key] = entry
	}
	entry.lastAccess = now

	filtered := entry.timestamps[:0]
	for _, ts := range entry.timestamps {
		if ts.After(windowStart) {
			filtered = append(filtered, ts)
		}
	}
	entry.timestamps = filtered

	if len(entry.timestamps) >= l.limit {
		retryAfter := entry.timestamps[0].Add(l.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retryAfter}
	}

	entry.timestamps = append(entry.timestamps, now)
	return Decision{
		Allowed:   true,
		Remaining: l.limit - len(entry.timestamps),
	}
}
