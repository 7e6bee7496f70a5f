package password

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestHasher(t *testing.T) *Argon2 {
	t.Helper()
	hasher, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	return hasher
}

func TestHashAndVerify(t *testing.T) {
	hasher := newTestHasher(t)

	hash, err := hasher.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}
	if !hasher.Verify("secret1", hash) {
		t.Fatal("expected password verification to succeed")
	}
}

func TestVerifyWrongPassword(t *testing.T) {
	hasher := newTestHasher(t)

	hash, err := hasher.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if hasher.Verify("secret2", hash) {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestHashIsSalted(t *testing.T) {
	hasher := newTestHasher(t)

	a, err := hasher.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	b, err := hasher.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if a == b {
		t.Fatal("expected two hashes of one password to differ")
	}
	if a == "same-password" || strings.Contains(a, "same-password") {
		t.Fatal("hash must not contain plaintext")
	}
}

func TestHashAcceptsAnyInput(t *testing.T) {
	hasher := newTestHasher(t)

	for _, in := range []string{"", "a", "пароль", strings.Repeat("x", 4096), "with\x00nul"} {
		hash, err := hasher.Hash(in)
		if err != nil {
			t.Fatalf("Hash(%q) error: %v", in, err)
		}
		if !hasher.Verify(in, hash) {
			t.Fatalf("Verify(%q) failed on own hash", in)
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy unavailable") }

func TestHashEntropyFailure(t *testing.T) {
	hasher := newTestHasher(t)
	hasher.random = failingReader{}

	_, err := hasher.Hash("secret1")
	if !errors.Is(err, ErrHashingFailed) {
		t.Fatalf("expected ErrHashingFailed, got %v", err)
	}
}

func TestVerifyMalformedHashReturnsFalse(t *testing.T) {
	hasher := newTestHasher(t)

	cases := []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$2a$10$abcdefghijklmnopqrstuv",
	}
	for _, encoded := range cases {
		if hasher.Verify("anything", encoded) {
			t.Fatalf("expected false for malformed hash %q", encoded)
		}
	}
}

func TestVerifyAcceptsPaddedSegments(t *testing.T) {
	hasher := newTestHasher(t)

	hash, err := hasher.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	parts := strings.Split(hash, "$")
	// 16-byte salt encodes to 22 chars unpadded, 32-byte key to 43.
	parts[4] += "=="
	parts[5] += "="
	padded := strings.Join(parts, "$")

	if !hasher.Verify("secret1", padded) {
		t.Fatal("expected padded hash to verify")
	}
}

func TestNeedsUpgrade(t *testing.T) {
	oldHasher := newTestHasher(t)

	hash, err := oldHasher.Hash("test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	newHasher, err := NewArgon2(DefaultConfig())
	if err != nil {
		t.Fatalf("NewArgon2(default) error: %v", err)
	}

	if !newHasher.NeedsUpgrade(hash) {
		t.Fatal("expected NeedsUpgrade=true for weaker hash")
	}
	if oldHasher.NeedsUpgrade(hash) {
		t.Fatal("expected NeedsUpgrade=false for matching params")
	}
	if newHasher.NeedsUpgrade("garbage") {
		t.Fatal("expected NeedsUpgrade=false for malformed hash")
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	base := testConfig()

	cases := map[string]func(*Config){
		"memory":      func(c *Config) { c.Memory = 1024 },
		"time":        func(c *Config) { c.Time = 0 },
		"parallelism": func(c *Config) { c.Parallelism = 0 },
		"salt":        func(c *Config) { c.SaltLength = 8 },
		"key":         func(c *Config) { c.KeyLength = 8 },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		if _, err := NewArgon2(cfg); err == nil {
			t.Fatalf("%s: expected config error", name)
		}
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Memory != 19456 || cfg.Time != 2 || cfg.Parallelism != 1 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if _, err := NewArgon2(cfg); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
}

func TestPoolHashVerify(t *testing.T) {
	pool := NewPool(newTestHasher(t), 2)
	ctx := context.Background()

	hash, err := pool.Hash(ctx, "secret1")
	if err != nil {
		t.Fatalf("pool Hash error: %v", err)
	}
	ok, err := pool.Verify(ctx, "secret1", hash)
	if err != nil || !ok {
		t.Fatalf("pool Verify = %v, %v", ok, err)
	}
	ok, err = pool.Verify(ctx, "nope", hash)
	if err != nil || ok {
		t.Fatalf("pool Verify(wrong) = %v, %v", ok, err)
	}
}

func TestPoolDefaultSize(t *testing.T) {
	pool := NewPool(newTestHasher(t), 0)
	if pool.Size() != DefaultPoolSize() || pool.Size() < 1 {
		t.Fatalf("unexpected pool size %d", pool.Size())
	}
}

func TestPoolHonoursContextWhileWaiting(t *testing.T) {
	pool := NewPool(newTestHasher(t), 1)

	// Occupy the only slot.
	if err := pool.slots.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer pool.slots.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := pool.Hash(ctx, "secret1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if _, err := pool.Verify(ctx, "secret1", "x"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	const size = 2
	pool := NewPool(newTestHasher(t), size)

	var (
		active  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pool.slots.Acquire(context.Background(), 1); err != nil {
				return
			}
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			pool.slots.Release(1)
		}()
	}
	wg.Wait()

	if maxSeen > size {
		t.Fatalf("observed %d concurrent holders, limit %d", maxSeen, size)
	}
}
