package ratelimit

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "user:7:email", Key(7, "email"))
	assert.Equal(t, "anon:email", Key(0, "email"))
}

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	clock := newClock()
	l := NewMemoryLimiter(clock.Now)
	ctx := context.Background()

	d, err := l.Check(ctx, "user:1:email", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)

	for i := 2; i <= 5; i++ {
		d, _ = l.Check(ctx, "user:1:email", 5, time.Minute)
		assert.True(t, d.Allowed, "call %d", i)
		assert.Equal(t, 5-i, d.Remaining)
	}

	d, _ = l.Check(ctx, "user:1:email", 5, time.Minute)
	assert.False(t, d.Allowed, "6th call rejected")
	assert.Equal(t, 0, d.Remaining)

	// other keys are independent
	d, _ = l.Check(ctx, "user:2:email", 5, time.Minute)
	assert.True(t, d.Allowed)

	clock.Advance(59 * time.Second)
	d, _ = l.Check(ctx, "user:1:email", 5, time.Minute)
	assert.False(t, d.Allowed, "still inside the window")

	clock.Advance(time.Second)
	d, _ = l.Check(ctx, "user:1:email", 5, time.Minute)
	assert.True(t, d.Allowed, "window elapsed")
	assert.Equal(t, 4, d.Remaining)
	assert.Equal(t, clock.Now().Add(time.Minute), d.ResetAt)
}

func TestMemoryLimiter_BoundaryBurst(t *testing.T) {
	clock := newClock()
	l := NewMemoryLimiter(clock.Now)
	ctx := context.Background()

	l.Check(ctx, "k", 2, time.Minute)
	clock.Advance(59 * time.Second)
	d, _ := l.Check(ctx, "k", 2, time.Minute)
	assert.True(t, d.Allowed)
	clock.Advance(time.Second)
	// a new window opens right away: up to 2*max within about a second
	d1, _ := l.Check(ctx, "k", 2, time.Minute)
	d2, _ := l.Check(ctx, "k", 2, time.Minute)
	assert.True(t, d1.Allowed)
	assert.True(t, d2.Allowed)
}

func TestMemoryLimiter_Unlimited(t *testing.T) {
	l := NewMemoryLimiter(nil)
	for i := 0; i < 100; i++ {
		d, err := l.Check(context.Background(), "k", 0, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	assert.Zero(t, l.Len())
}

func TestMemoryLimiter_Allow(t *testing.T) {
	l := NewMemoryLimiter(nil)
	assert.True(t, l.Allow("login:1.2.3.4", 1, time.Minute))
	assert.False(t, l.Allow("login:1.2.3.4", 1, time.Minute))
}

func TestMemoryLimiter_Sweep(t *testing.T) {
	clock := newClock()
	l := NewMemoryLimiter(clock.Now)
	l.Check(context.Background(), "a", 1, time.Minute)
	l.Check(context.Background(), "b", 1, time.Hour)

	clock.Advance(2 * time.Minute)
	l.sweep()
	assert.Equal(t, 1, l.Len())
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	l := NewMemoryLimiter(nil)
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, _ := l.Check(context.Background(), "shared", 10, time.Hour)
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
}

func TestBudgets(t *testing.T) {
	b := DefaultBudgets()
	assert.Equal(t, Budget{Max: 10, Window: time.Minute}, b.For("ip"))
	assert.Equal(t, 3, b.For("image").Max)
	assert.Equal(t, 3, b.For("unknown").Max)

	b.Override("ip", 20, 0)
	assert.Equal(t, Budget{Max: 20, Window: time.Minute}, b.For("ip"))
	b.Override("email", 1, 30*time.Second)
	assert.Equal(t, Budget{Max: 1, Window: 30 * time.Second}, b.For("email"))

	// defaults are not shared between calls
	assert.Equal(t, 10, DefaultBudgets().For("ip").Max)

	for _, kind := range []string{"domain", "ip", "email", "social", "phone", "image", "imei"} {
		_, ok := DefaultBudgets()[kind]
		assert.True(t, ok, fmt.Sprintf("budget for %s", kind))
	}
}

func TestNewRedisLimiter_RequiresAddr(t *testing.T) {
	_, err := NewRedisLimiter("", "", 0, nil)
	assert.Error(t, err)

	l, err := NewRedisLimiter("127.0.0.1:6379", "", 0, nil)
	require.NoError(t, err)
	defer l.Close()

	d, err := l.Check(context.Background(), "k", 0, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "unlimited budgets never touch redis")
}

// redisForTest connects to OSD_TEST_REDIS_ADDR and skips when it is unset or down.
func redisForTest(t *testing.T) *RedisLimiter {
	t.Helper()
	addr := os.Getenv("OSD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("OSD_TEST_REDIS_ADDR not set")
	}
	l, err := NewRedisLimiter(addr, os.Getenv("OSD_TEST_REDIS_PASSWORD"), 0, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.Ping(ctx); err != nil {
		l.Close()
		t.Skipf("redis at %s unreachable: %v", addr, err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	l := redisForTest(t)
	ctx := context.Background()
	key := fmt.Sprintf("test:%d", time.Now().UnixNano())
	window := 400 * time.Millisecond

	d, err := l.Check(ctx, key, 2, window)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Limit)
	assert.Equal(t, 1, d.Remaining)
	assert.WithinDuration(t, time.Now().Add(window), d.ResetAt, window)

	d, err = l.Check(ctx, key, 2, window)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, err = l.Check(ctx, key, 2, window)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.True(t, d.ResetAt.After(time.Now()))

	// other keys have their own window
	d, err = l.Check(ctx, key+":other", 2, window)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	time.Sleep(window + 100*time.Millisecond)
	d, err = l.Check(ctx, key, 2, window)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "a fresh window starts after expiry")
	assert.Equal(t, 1, d.Remaining)
}
