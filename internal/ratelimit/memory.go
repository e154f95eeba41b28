package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps counters in process memory. State is lost on restart and
// is not shared between instances; use RedisLimiter for that.
type MemoryLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	buckets map[string]*bucket
}

type bucket struct {
	count int
	start time.Time
	end   time.Time
}

// NewMemoryLimiter returns a limiter using now as its clock (time.Now when nil).
func NewMemoryLimiter(now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{now: now, buckets: make(map[string]*bucket)}
}

// Check counts one request against key. The first request of a window opens it with
// count 1; requests are allowed while count < max; once now - start >= window a new
// window opens. A rejected request does not extend the window.
func (m *MemoryLimiter) Check(_ context.Context, key string, max int, window time.Duration) (Decision, error) {
	if max <= 0 {
		return Decision{Allowed: true, Limit: max, Remaining: max}, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok || now.Sub(b.start) >= window {
		b = &bucket{count: 1, start: now, end: now.Add(window)}
		m.buckets[key] = b
		return Decision{Allowed: true, Limit: max, Remaining: max - 1, ResetAt: b.end}, nil
	}

	if b.count < max {
		b.count++
		return Decision{Allowed: true, Limit: max, Remaining: max - b.count, ResetAt: b.end}, nil
	}
	return Decision{Allowed: false, Limit: max, Remaining: 0, ResetAt: b.end}, nil
}

// Allow is the boolean form used by the HTTP middleware.
func (m *MemoryLimiter) Allow(key string, max int, window time.Duration) bool {
	d, _ := m.Check(context.Background(), key, max, window)
	return d.Allowed
}

// StartCleanup drops expired buckets every interval until ctx is done.
func (m *MemoryLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

func (m *MemoryLimiter) sweep() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, b := range m.buckets {
		if !now.Before(b.end) {
			delete(m.buckets, key)
		}
	}
}

// Len reports the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}
