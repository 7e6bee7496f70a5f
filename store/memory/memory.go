// Package memory is a mutex-guarded in-process implementation of the store
// contracts, used by tests, examples and dev runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/authcore/store"
)

type tokenRow struct {
	owner     store.Owner
	expiresAt time.Time
}

// Store holds users and refresh tokens in maps. The zero value is not usable;
// call New.
type Store struct {
	mu     sync.Mutex
	users  map[string]store.User // by username
	tokens map[string]tokenRow   // by digest
	byUser map[string]map[string]struct{}
	now    func() time.Time
}

var (
	_ store.UserStore         = (*Store)(nil)
	_ store.RefreshTokenStore = (*Store)(nil)
	_ store.Purger            = (*Store)(nil)
)

func New() *Store {
	return &Store{
		users:  make(map[string]store.User),
		tokens: make(map[string]tokenRow),
		byUser: make(map[string]map[string]struct{}),
		now:    time.Now,
	}
}

// SetClock overrides the time source used for expiry checks.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) CreateUser(ctx context.Context, user store.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.Username]; ok {
		return &store.ConstraintError{Constraint: "users_username_key"}
	}
	for _, u := range s.users {
		if u.ID == user.ID {
			return &store.ConstraintError{Constraint: "users_pkey"}
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	s.users[user.Username] = user
	return nil
}

func (s *Store) UserByUsername(ctx context.Context, username string) (store.User, error) {
	if err := ctx.Err(); err != nil {
		return store.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, u := range s.users {
		if u.ID == userID {
			u.PasswordHash = passwordHash
			s.users[name] = u
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) Persist(ctx context.Context, owner store.Owner, key string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(owner, key, expiresAt)
}

func (s *Store) Redeem(ctx context.Context, key string) (store.Owner, error) {
	if err := ctx.Err(); err != nil {
		return store.Owner{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.tokens[key]
	if !ok {
		return store.Owner{}, store.ErrNotFound
	}
	if !row.expiresAt.After(s.now()) {
		return store.Owner{}, store.ErrExpired
	}
	return row.owner, nil
}

// Rotate holds the store lock across delete and insert, so concurrent callers
// for one key observe exactly one winner.
func (s *Store) Rotate(ctx context.Context, key string, next store.Replacement) (store.Owner, error) {
	if err := ctx.Err(); err != nil {
		return store.Owner{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.tokens[key]
	if !ok {
		return store.Owner{}, store.ErrNotFound
	}
	s.deleteLocked(key)
	if !row.expiresAt.After(s.now()) {
		return store.Owner{}, store.ErrExpired
	}
	if err := s.insertLocked(row.owner, next.Key, next.ExpiresAt); err != nil {
		// Restore the consumed row so a failed insert leaves no trace.
		s.tokens[key] = row
		s.index(row.owner.UserID, key)
		return store.Owner{}, err
	}
	return row.owner, nil
}

func (s *Store) Revoke(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(key)
	return nil
}

func (s *Store) RevokeUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.byUser[userID] {
		delete(s.tokens, key)
	}
	delete(s.byUser, userID)
	return nil
}

func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for key, row := range s.tokens {
		if !row.expiresAt.After(now) {
			s.deleteLocked(key)
			n++
		}
	}
	return n, nil
}

// TokenCount returns the number of stored refresh rows, expired included.
func (s *Store) TokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

func (s *Store) insertLocked(owner store.Owner, key string, expiresAt time.Time) error {
	if _, exists := s.tokens[key]; exists {
		return &store.ConstraintError{Constraint: "refresh_tokens_pkey"}
	}
	s.tokens[key] = tokenRow{owner: owner, expiresAt: expiresAt}
	s.index(owner.UserID, key)
	return nil
}

func (s *Store) index(userID, key string) {
	set, ok := s.byUser[userID]
	if !ok {
		set = make(map[string]struct{})
		s.byUser[userID] = set
	}
	set[key] = struct{}{}
}

func (s *Store) deleteLocked(key string) {
	row, ok := s.tokens[key]
	if !ok {
		return
	}
	delete(s.tokens, key)
	if set, ok := s.byUser[row.owner.UserID]; ok {
		delete(set, key)
		if len(set) == 0 {
			delete(s.byUser, row.owner.UserID)
		}
	}
}
