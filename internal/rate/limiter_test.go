package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiterTest(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return New(rdb, cfg), mr
}

func TestLoginBudget(t *testing.T) {
	l, _ := newLimiterTest(t, Config{Prefix: "t:", MaxLoginAttempts: 3, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "alice", ""); err != nil {
			t.Fatalf("attempt %d should be allowed: %v", i, err)
		}
		if err := l.RecordFailure(ctx, "alice", ""); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}

	err := l.CheckLogin(ctx, "alice", "")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	var le *LimitError
	if !errors.As(err, &le) || le.RetryAfter <= 0 || le.RetryAfter > time.Minute {
		t.Fatalf("expected positive RetryAfter, got %+v", le)
	}

	if err := l.CheckLogin(ctx, "bob", ""); err != nil {
		t.Fatalf("other users must be unaffected: %v", err)
	}
}

func TestWindowExpires(t *testing.T) {
	l, mr := newLimiterTest(t, Config{MaxLoginAttempts: 1, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	_ = l.RecordFailure(ctx, "alice", "")
	if err := l.CheckLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limit, got %v", err)
	}

	mr.FastForward(61 * time.Second)
	if err := l.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("expected window reset, got %v", err)
	}
}

func TestResetLogin(t *testing.T) {
	l, _ := newLimiterTest(t, Config{MaxLoginAttempts: 5, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	_ = l.RecordFailure(ctx, "alice", "")
	_ = l.RecordFailure(ctx, "alice", "")
	if n, _ := l.Attempts(ctx, "alice"); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
	if err := l.ResetLogin(ctx, "alice"); err != nil {
		t.Fatalf("ResetLogin: %v", err)
	}
	if n, _ := l.Attempts(ctx, "alice"); n != 0 {
		t.Fatalf("expected 0 attempts after reset, got %d", n)
	}
}

func TestIPThrottle(t *testing.T) {
	l, mr := newLimiterTest(t, Config{EnableIPThrottle: true, MaxLoginAttempts: 2, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	_ = l.RecordFailure(ctx, "alice", "10.0.0.1")
	_ = l.RecordFailure(ctx, "bob", "10.0.0.1")

	if !mr.Exists("ali:10.0.0.1") {
		t.Fatal("expected per-IP counter")
	}
	if err := l.CheckLogin(ctx, "carol", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP to be limited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "carol", "10.0.0.2"); err != nil {
		t.Fatalf("other IPs must be unaffected: %v", err)
	}
}

func TestRedisDown(t *testing.T) {
	l, mr := newLimiterTest(t, Config{MaxLoginAttempts: 2, LoginCooldownDuration: time.Minute})
	mr.Close()

	if err := l.CheckLogin(context.Background(), "alice", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
