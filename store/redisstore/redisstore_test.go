package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreTest(t *testing.T) (*Store, *miniredis.Miniredis, *redis.Client) {
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
	return New(rdb, "test:"), mr, rdb
}

var alice = store.Owner{UserID: "u1", Username: "alice"}

func TestPersistAndRedeem(t *testing.T) {
	s, mr, _ := newRedisStoreTest(t)
	ctx := context.Background()

	if err := s.Persist(ctx, alice, "d1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if !mr.Exists("test:rt:d1") {
		t.Fatal("expected token hash key")
	}
	if ok, _ := mr.SIsMember("test:ru:u1", "d1"); !ok {
		t.Fatal("expected digest in user index")
	}
	if ttl := mr.TTL("test:rt:d1"); ttl <= 0 {
		t.Fatalf("expected positive TTL, got %v", ttl)
	}

	for i := 0; i < 2; i++ {
		got, err := s.Redeem(ctx, "d1")
		if err != nil || got != alice {
			t.Fatalf("Redeem #%d = %+v, %v", i, got, err)
		}
	}
	if _, err := s.Redeem(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPersistDuplicateKey(t *testing.T) {
	s, _, _ := newRedisStoreTest(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	if err := s.Persist(ctx, alice, "d1", exp); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if err := s.Persist(ctx, alice, "d1", exp); !errors.Is(err, store.ErrUniqueViolation) {
		t.Fatalf("expected constraint error, got %v", err)
	}
}

func TestRedeemExpired(t *testing.T) {
	s, _, _ := newRedisStoreTest(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Minute)

	if err := s.Persist(ctx, alice, "d1", exp); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	s.now = func() time.Time { return exp }

	if _, err := s.Redeem(ctx, "d1"); !errors.Is(err, store.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestRotate(t *testing.T) {
	s, mr, _ := newRedisStoreTest(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)
	_ = s.Persist(ctx, alice, "d1", exp)

	got, err := s.Rotate(ctx, "d1", store.Replacement{Key: "d2", ExpiresAt: exp})
	if err != nil || got != alice {
		t.Fatalf("Rotate = %+v, %v", got, err)
	}
	if mr.Exists("test:rt:d1") {
		t.Fatal("old token must be deleted")
	}
	if !mr.Exists("test:rt:d2") {
		t.Fatal("replacement must exist")
	}
	members, _ := mr.Members("test:ru:u1")
	if len(members) != 1 || members[0] != "d2" {
		t.Fatalf("unexpected user index %v", members)
	}

	if _, err := s.Rotate(ctx, "d1", store.Replacement{Key: "d3", ExpiresAt: exp}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected reuse to fail with ErrNotFound, got %v", err)
	}
}

func TestRotateExpired(t *testing.T) {
	s, mr, _ := newRedisStoreTest(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Minute)
	_ = s.Persist(ctx, alice, "d1", exp)

	s.now = func() time.Time { return exp.Add(time.Second) }
	if _, err := s.Rotate(ctx, "d1", store.Replacement{Key: "d2", ExpiresAt: exp.Add(time.Hour)}); !errors.Is(err, store.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if mr.Exists("test:rt:d1") || mr.Exists("test:rt:d2") {
		t.Fatal("expired rotation must delete the old row and insert nothing")
	}
}

func TestRotateConcurrentSingleWinner(t *testing.T) {
	s, _, _ := newRedisStoreTest(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)
	_ = s.Persist(ctx, alice, "d1", exp)

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		notFound int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := s.Rotate(ctx, "d1", store.Replacement{Key: fmt.Sprintf("next-%d", i), ExpiresAt: exp})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, store.ErrNotFound):
				notFound++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if wins != 1 || notFound != workers-1 {
		t.Fatalf("expected exactly one winner, got wins=%d notFound=%d", wins, notFound)
	}
}

func TestRevokeAndRevokeUser(t *testing.T) {
	s, mr, _ := newRedisStoreTest(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)
	bob := store.Owner{UserID: "u2", Username: "bob"}
	_ = s.Persist(ctx, alice, "a1", exp)
	_ = s.Persist(ctx, alice, "a2", exp)
	_ = s.Persist(ctx, bob, "b1", exp)

	if err := s.Revoke(ctx, "a1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := s.Revoke(ctx, "never-existed"); err != nil {
		t.Fatalf("Revoke(unknown): %v", err)
	}
	if mr.Exists("test:rt:a1") {
		t.Fatal("a1 must be gone")
	}
	if ok, _ := mr.SIsMember("test:ru:u1", "a1"); ok {
		t.Fatal("a1 must be removed from the index")
	}

	if err := s.RevokeUser(ctx, "u1"); err != nil {
		t.Fatalf("RevokeUser: %v", err)
	}
	if mr.Exists("test:rt:a2") || mr.Exists("test:ru:u1") {
		t.Fatal("alice's tokens and index must be gone")
	}
	if _, err := s.Redeem(ctx, "b1"); err != nil {
		t.Fatalf("bob's token must survive: %v", err)
	}
}

func TestRedisDownIsUnavailable(t *testing.T) {
	s, mr, _ := newRedisStoreTest(t)
	mr.Close()
	ctx := context.Background()

	if err := s.Persist(ctx, alice, "d1", time.Now().Add(time.Hour)); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := s.Redeem(ctx, "d1"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := s.Rotate(ctx, "d1", store.Replacement{Key: "d2", ExpiresAt: time.Now().Add(time.Hour)}); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestUserIndexExpiresWithItsTokens(t *testing.T) {
	s, mr, _ := newRedisStoreTest(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Second)

	for i := 0; i < 100; i++ {
		if err := s.Persist(ctx, alice, fmt.Sprintf("d%d", i), exp); err != nil {
			t.Fatalf("Persist #%d: %v", i, err)
		}
	}
	if ttl := mr.TTL("test:ru:u1"); ttl <= 0 {
		t.Fatalf("expected index TTL, got %v", ttl)
	}

	mr.FastForward(time.Hour)
	if mr.Exists("test:ru:u1") {
		members, _ := mr.Members("test:ru:u1")
		t.Fatalf("index should expire with its tokens, %d members left", len(members))
	}
}

func TestUserIndexTTLFollowsLongestToken(t *testing.T) {
	s, mr, _ := newRedisStoreTest(t)
	ctx := context.Background()

	_ = s.Persist(ctx, alice, "long", time.Now().Add(time.Hour))
	_ = s.Persist(ctx, alice, "short", time.Now().Add(time.Second))
	if ttl := mr.TTL("test:ru:u1"); ttl < 30*time.Minute {
		t.Fatalf("a shorter token must not shrink the index TTL, got %v", ttl)
	}

	got, err := s.Rotate(ctx, "short", store.Replacement{Key: "longer", ExpiresAt: time.Now().Add(2 * time.Hour)})
	if err != nil || got != alice {
		t.Fatalf("Rotate = %+v, %v", got, err)
	}
	if ttl := mr.TTL("test:ru:u1"); ttl < 90*time.Minute {
		t.Fatalf("rotation should extend the index TTL, got %v", ttl)
	}
}

func TestPersistPrunesExpiredIndexEntries(t *testing.T) {
	s, mr, _ := newRedisStoreTest(t)
	ctx := context.Background()

	_ = s.Persist(ctx, alice, "short", time.Now().Add(time.Second))
	_ = s.Persist(ctx, alice, "long", time.Now().Add(time.Hour))
	mr.FastForward(2 * time.Second)

	if err := s.Persist(ctx, alice, "fresh", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	members, _ := mr.Members("test:ru:u1")
	if len(members) != 2 {
		t.Fatalf("expected [fresh long], got %v", members)
	}
	if ok, _ := mr.SIsMember("test:ru:u1", "short"); ok {
		t.Fatal("expired digest must be pruned")
	}
}

func TestPurgeExpiredPrunesIndexes(t *testing.T) {
	s, mr, _ := newRedisStoreTest(t)
	ctx := context.Background()
	bob := store.Owner{UserID: "u2", Username: "bob"}

	_ = s.Persist(ctx, alice, "a-short", time.Now().Add(time.Second))
	_ = s.Persist(ctx, alice, "a-long", time.Now().Add(time.Hour))
	_ = s.Persist(ctx, bob, "b-short", time.Now().Add(time.Second))
	_ = s.Persist(ctx, bob, "b-long", time.Now().Add(time.Hour))
	mr.FastForward(2 * time.Second)

	if members, _ := mr.Members("test:ru:u1"); len(members) != 2 {
		t.Fatalf("expected stale entry before purge, got %v", members)
	}

	n, err := s.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 pruned entries, got %d", n)
	}
	for _, key := range []string{"test:ru:u1", "test:ru:u2"} {
		if members, _ := mr.Members(key); len(members) != 1 {
			t.Fatalf("%s: expected one live entry, got %v", key, members)
		}
	}

	_ = s.Revoke(ctx, "a-long")
	if n, err := s.PurgeExpired(ctx); err != nil || n != 0 {
		t.Fatalf("second purge = %d, %v", n, err)
	}
}

func TestClusterPrefixGetsHashTag(t *testing.T) {
	cluster := redis.NewClusterClient(&redis.ClusterOptions{Addrs: []string{"127.0.0.1:0"}})
	t.Cleanup(func() { cluster.Close() })

	if s := New(cluster, "test:"); s.tokenKey("x") != "{test}:rt:x" || s.userKey("u") != "{test}:ru:u" {
		t.Fatalf("unexpected cluster keys %s %s", s.tokenKey("x"), s.userKey("u"))
	}
	if s := New(cluster, "{app}:auth:"); s.prefix != "{app}:auth:" {
		t.Fatalf("tagged prefix must be kept, got %q", s.prefix)
	}
	if s := New(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "test:"); s.prefix != "test:" {
		t.Fatalf("single-node prefix must be kept, got %q", s.prefix)
	}
}

func TestDefaultPrefix(t *testing.T) {
	s := New(nil, "")
	if s.tokenKey("x") != "authcore:rt:x" || s.userKey("u") != "authcore:ru:u" {
		t.Fatalf("unexpected keys %s %s", s.tokenKey("x"), s.userKey("u"))
	}
}
