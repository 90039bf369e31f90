package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestLoginLimiterBlocksAfterBudget(t *testing.T) {
	mr, rdb := newRedis(t)
	l := New(rdb, Config{EnableIPThrottle: true, MaxLoginAttempts: 3, LoginCooldownDuration: 15 * time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "Dana@Example.com", "10.0.0.1"); err != nil {
			t.Fatalf("attempt %d blocked early: %v", i, err)
		}
		if err := l.IncrementLogin(ctx, "dana@example.com", "10.0.0.1"); err != nil {
			t.Fatalf("IncrementLogin: %v", err)
		}
	}
	if err := l.CheckLogin(ctx, "dana@example.com", "10.0.0.2"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected email budget exhausted, got %v", err)
	}
	if err := l.CheckLogin(ctx, "other@example.com", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ip budget exhausted, got %v", err)
	}

	if ttl := mr.TTL("ol:dana@example.com"); ttl != 15*time.Minute {
		t.Fatalf("unexpected window ttl %v", ttl)
	}

	mr.FastForward(15 * time.Minute)
	if err := l.CheckLogin(ctx, "dana@example.com", "10.0.0.1"); err != nil {
		t.Fatalf("expected window reset, got %v", err)
	}
}

func TestLoginLimiterReset(t *testing.T) {
	_, rdb := newRedis(t)
	l := New(rdb, Config{MaxLoginAttempts: 2, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "a@example.com", "")
	if n, _ := l.LoginAttempts(ctx, "a@example.com"); n != 1 {
		t.Fatalf("attempts=%d", n)
	}
	if err := l.ResetLogin(ctx, "a@example.com"); err != nil {
		t.Fatalf("ResetLogin: %v", err)
	}
	if n, _ := l.LoginAttempts(ctx, "a@example.com"); n != 0 {
		t.Fatalf("attempts after reset=%d", n)
	}
}

func TestMFALimiter(t *testing.T) {
	mr, rdb := newRedis(t)
	l := NewMFALimiter(rdb, MFAConfig{})
	ctx := context.Background()

	for i := 1; i < defaultMFAMaxAttempts; i++ {
		if err := l.RecordFailure(ctx, "acc-1"); err != nil {
			t.Fatalf("failure %d: %v", i, err)
		}
	}
	if err := l.RecordFailure(ctx, "acc-1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected last failure to report limit, got %v", err)
	}
	if err := l.Check(ctx, "acc-1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected Check to block, got %v", err)
	}
	if err := l.Check(ctx, "acc-2"); err != nil {
		t.Fatalf("other account blocked: %v", err)
	}

	mr.FastForward(defaultMFACooldown)
	if err := l.Check(ctx, "acc-1"); err != nil {
		t.Fatalf("expected cooldown to lapse, got %v", err)
	}

	_ = l.RecordFailure(ctx, "acc-1")
	if err := l.Reset(ctx, "acc-1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if mr.Exists("om:acc-1") {
		t.Fatal("expected counter removed")
	}
}

func TestUnavailableRedisIsReported(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()
	l := New(rdb, Config{MaxLoginAttempts: 1, LoginCooldownDuration: time.Minute})
	if err := l.CheckLogin(context.Background(), "x@example.com", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
