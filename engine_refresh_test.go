package authcore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func loginAlice(t *testing.T, engine *Engine) TokenPair {
	t.Helper()
	mustRegister(t, engine, "alice", "secret1")
	pair, err := engine.Login(context.Background(), "alice", "secret1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return pair
}

func TestRefreshConcurrencySingleWinner(t *testing.T) {
	engine, mem := newTestEngine(t, testConfig())
	pair := loginAlice(t, engine)

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := engine.Refresh(context.Background(), pair.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	fail := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if errors.Is(err, ErrRefreshInvalid) {
			fail++
			continue
		}
		t.Fatalf("unexpected refresh error: %v", err)
	}

	if success != 1 {
		t.Fatalf("expected exactly one refresh success, got %d", success)
	}
	if fail != n-1 {
		t.Fatalf("expected %d refresh failures, got %d", n-1, fail)
	}
	if mem.TokenCount() != 1 {
		t.Fatalf("expected only the replacement token to remain, got %d", mem.TokenCount())
	}
}

func TestRefreshRotatingRejectsReuse(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	pair := loginAlice(t, engine)
	ctx := context.Background()

	next, err := engine.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("rotating mode must return a new refresh token")
	}

	if _, err := engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid on reuse, got %v", err)
	}
	if _, err := engine.Refresh(ctx, next.RefreshToken); err != nil {
		t.Fatalf("replacement token should be redeemable: %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricRefreshSuccess] != 2 || snap.Counters[MetricRefreshRejected] != 1 {
		t.Fatalf("unexpected refresh counters: %+v", snap.Counters)
	}
}

func TestRefreshStaticModeAllSucceed(t *testing.T) {
	cfg := testConfig()
	cfg.Refresh.Rotation = RotationStatic
	engine, mem := newTestEngine(t, cfg)
	pair := loginAlice(t, engine)

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)

	type result struct {
		pair TokenPair
		err  error
	}
	results := make(chan result, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			p, err := engine.Refresh(context.Background(), pair.RefreshToken)
			results <- result{pair: p, err: err}
		}()
	}
	wg.Wait()
	close(results)

	for r := range results {
		if r.err != nil {
			t.Fatalf("static refresh failed: %v", r.err)
		}
		if r.pair.RefreshToken != pair.RefreshToken {
			t.Fatal("static mode must echo the presented refresh token")
		}
		if r.pair.UserID != pair.UserID || r.pair.Username != "alice" {
			t.Fatalf("unexpected owner: %+v", r.pair)
		}
	}
	if mem.TokenCount() != 1 {
		t.Fatalf("static mode must not add rows, got %d", mem.TokenCount())
	}
}

func TestRefreshExpired(t *testing.T) {
	for _, mode := range []RotationMode{RotationRotating, RotationStatic} {
		t.Run(mode.String(), func(t *testing.T) {
			cfg := testConfig()
			cfg.Refresh.Rotation = mode
			engine, _, clock := newClockedEngine(t, cfg)
			pair := loginAlice(t, engine)

			clock.Advance(cfg.Refresh.TTL)
			_, err := engine.Refresh(context.Background(), pair.RefreshToken)
			if !errors.Is(err, ErrRefreshExpired) {
				t.Fatalf("expected ErrRefreshExpired, got %v", err)
			}
		})
	}
}

func TestRefreshUnknownAndMalformed(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	if _, err := engine.Refresh(ctx, "junk"); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid for malformed token, got %v", err)
	}

	unknown := "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	if _, err := engine.Refresh(ctx, unknown); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid for unknown token, got %v", err)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	pair := loginAlice(t, engine)
	ctx := context.Background()

	if err := engine.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if err := engine.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("second logout should be a no-op: %v", err)
	}
	if _, err := engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid after logout, got %v", err)
	}
	if err := engine.Logout(ctx, "junk"); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid for malformed token, got %v", err)
	}
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	engine, mem := newTestEngine(t, testConfig())
	first := loginAlice(t, engine)
	ctx := context.Background()

	second, err := engine.Login(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("second login failed: %v", err)
	}

	if err := engine.LogoutAll(ctx, first.UserID); err != nil {
		t.Fatalf("logout all failed: %v", err)
	}
	for _, tok := range []string{first.RefreshToken, second.RefreshToken} {
		if _, err := engine.Refresh(ctx, tok); !errors.Is(err, ErrRefreshInvalid) {
			t.Fatalf("expected ErrRefreshInvalid after logout all, got %v", err)
		}
	}
	if mem.TokenCount() != 0 {
		t.Fatalf("expected no tokens left, got %d", mem.TokenCount())
	}
}

func TestPurgeExpired(t *testing.T) {
	engine, mem, clock := newClockedEngine(t, testConfig())
	loginAlice(t, engine)
	ctx := context.Background()

	n, err := engine.PurgeExpired(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected nothing to purge, got %d, %v", n, err)
	}

	clock.Advance(8 * 24 * time.Hour)
	n, err = engine.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if n != 1 || mem.TokenCount() != 0 {
		t.Fatalf("expected one purged row, got %d (left %d)", n, mem.TokenCount())
	}
	if got := engine.MetricsSnapshot().Counters[MetricRefreshPurged]; got != 1 {
		t.Fatalf("expected purge counter 1, got %d", got)
	}
}
