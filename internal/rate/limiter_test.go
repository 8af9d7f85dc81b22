package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisCounter(t *testing.T) (*miniredis.Miniredis, *RedisCounter) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisCounter(client)
}

func backends(t *testing.T) map[string]Counter {
	_, rc := newRedisCounter(t)
	return map[string]Counter{
		"redis":  rc,
		"memory": NewMemoryCounter(time.Minute),
	}
}

func loginConfig() Config {
	return Config{
		EnableIPThrottle:      true,
		MaxLoginAttempts:      3,
		LoginCooldownDuration: time.Minute,
	}
}

func TestLoginBudget(t *testing.T) {
	ctx := context.Background()
	for name, counter := range backends(t) {
		l := New(counter, loginConfig())

		for i := 0; i < 3; i++ {
			if err := l.CheckLogin(ctx, "Alice@Example.com", "10.0.0.1"); err != nil {
				t.Fatalf("%s: attempt %d should be allowed: %v", name, i, err)
			}
			if err := l.IncrementLogin(ctx, "alice@example.com ", "10.0.0.1"); err != nil {
				t.Fatalf("%s: increment %d: %v", name, i, err)
			}
		}
		if err := l.CheckLogin(ctx, "alice@example.com", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
			t.Fatalf("%s: expected ErrRateLimited after budget, got %v", name, err)
		}
		if n, err := l.LoginAttempts(ctx, "ALICE@example.com"); err != nil || n != 3 {
			t.Fatalf("%s: expected 3 attempts, got %d err=%v", name, n, err)
		}

		if err := l.ResetLogin(ctx, "alice@example.com"); err != nil {
			t.Fatalf("%s: reset: %v", name, err)
		}
		if err := l.CheckLogin(ctx, "alice@example.com", ""); err != nil {
			t.Fatalf("%s: expected identifier reset, got %v", name, err)
		}
		if err := l.CheckLogin(ctx, "bob@example.com", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
			t.Fatalf("%s: expected IP counter to survive identifier reset, got %v", name, err)
		}
	}
}

func TestLoginWindowExpiresInRedis(t *testing.T) {
	ctx := context.Background()
	mr, counter := newRedisCounter(t)
	l := New(counter, loginConfig())

	for i := 0; i < 3; i++ {
		_ = l.IncrementLogin(ctx, "u", "")
	}
	if err := l.CheckLogin(ctx, "u", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limit, got %v", err)
	}
	if ttl := mr.TTL("al:u"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected window ttl, got %v", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.CheckLogin(ctx, "u", ""); err != nil {
		t.Fatalf("expected window to reset, got %v", err)
	}
}

func TestRedisCounterWindowIsFixed(t *testing.T) {
	ctx := context.Background()
	mr, counter := newRedisCounter(t)

	if n, err := counter.Incr(ctx, "k", time.Minute); err != nil || n != 1 {
		t.Fatalf("first Incr = %d, %v", n, err)
	}
	if ttl := mr.TTL("k"); ttl != time.Minute {
		t.Fatalf("expected a one minute window, got %v", ttl)
	}

	mr.FastForward(40 * time.Second)
	if n, err := counter.Incr(ctx, "k", time.Minute); err != nil || n != 2 {
		t.Fatalf("second Incr = %d, %v", n, err)
	}
	if ttl := mr.TTL("k"); ttl != 20*time.Second {
		t.Fatalf("later hits must not extend the window, got %v", ttl)
	}

	// a counter created without a TTL picks one up on the next hit
	if err := mr.Set("orphan", "4"); err != nil {
		t.Fatalf("seed orphan: %v", err)
	}
	if n, err := counter.Incr(ctx, "orphan", time.Minute); err != nil || n != 5 {
		t.Fatalf("orphan Incr = %d, %v", n, err)
	}
	if ttl := mr.TTL("orphan"); ttl != time.Minute {
		t.Fatalf("expected orphan to get a window, got %v", ttl)
	}
}

func TestRegisterThrottle(t *testing.T) {
	ctx := context.Background()
	for name, counter := range backends(t) {
		disabled := New(counter, Config{})
		for i := 0; i < 10; i++ {
			if err := disabled.EnforceRegister(ctx, "x", "1.1.1.1"); err != nil {
				t.Fatalf("%s: disabled throttle must not limit: %v", name, err)
			}
		}

		l := New(counter, Config{EnableRegisterThrottle: true, MaxRegisterAttempts: 2, RegisterCooldown: time.Minute})
		if err := l.EnforceRegister(ctx, "a", "2.2.2.2"); err != nil {
			t.Fatalf("%s: first: %v", name, err)
		}
		if err := l.EnforceRegister(ctx, "b", "2.2.2.2"); err != nil {
			t.Fatalf("%s: second: %v", name, err)
		}
		if err := l.EnforceRegister(ctx, "c", "2.2.2.2"); !errors.Is(err, ErrRateLimited) {
			t.Fatalf("%s: expected per-IP limit, got %v", name, err)
		}
	}
}

func TestRedisUnavailable(t *testing.T) {
	ctx := context.Background()
	mr, counter := newRedisCounter(t)
	mr.Close()

	l := New(counter, loginConfig())
	if err := l.CheckLogin(ctx, "u", ""); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if err := l.IncrementLogin(ctx, "u", ""); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestMemoryCounterWindow(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter(time.Millisecond)

	if n, _ := c.Incr(ctx, "k", 20*time.Millisecond); n != 1 {
		t.Fatalf("expected 1, got %d", n)
	}
	if n, _ := c.Incr(ctx, "k", 20*time.Millisecond); n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}
	time.Sleep(40 * time.Millisecond)
	if n, _ := c.Get(ctx, "k"); n != 0 {
		t.Fatalf("expected expired window, got %d", n)
	}
	if n, _ := c.Incr(ctx, "k", time.Minute); n != 1 {
		t.Fatalf("expected new window, got %d", n)
	}
}
