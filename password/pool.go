package password

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many argon2 computations run at once so memory-hard work
// cannot starve the goroutines serving unrelated requests. Callers waiting
// for a slot give up when their context is done.
type Pool struct {
	hasher *Argon2
	slots  *semaphore.Weighted
	size   int64
}

// DefaultPoolSize is half of GOMAXPROCS, at least 1.
func DefaultPoolSize() int {
	n := runtime.GOMAXPROCS(0) / 2
	if n < 1 {
		n = 1
	}
	return n
}

// NewPool wraps hasher. A size <= 0 selects DefaultPoolSize.
func NewPool(hasher *Argon2, size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize()
	}
	return &Pool{
		hasher: hasher,
		slots:  semaphore.NewWeighted(int64(size)),
		size:   int64(size),
	}
}

// Size returns the number of concurrent slots.
func (p *Pool) Size() int {
	return int(p.size)
}

// Hash runs Argon2.Hash in a pool slot.
func (p *Pool) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.slots.Release(1)

	return p.hasher.Hash(plaintext)
}

// Verify runs Argon2.Verify in a pool slot. The error is non-nil only when ctx
// ended before a slot was free.
func (p *Pool) Verify(ctx context.Context, plaintext, encodedHash string) (bool, error) {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer p.slots.Release(1)

	return p.hasher.Verify(plaintext, encodedHash), nil
}

// NeedsUpgrade is cheap and does not take a slot.
func (p *Pool) NeedsUpgrade(encodedHash string) bool {
	return p.hasher.NeedsUpgrade(encodedHash)
}
