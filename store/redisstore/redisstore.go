package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authcore/store"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every transport or script failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// DefaultPrefix namespaces all keys written by the store.
const DefaultPrefix = "authcore:"

const (
	scriptNotFound = 0
	scriptExpired  = 1
	scriptRotated  = 2
	scriptConflict = 3
)

// indexFuncs is prepended to every script that touches a user index.
// extend_index keeps the index alive until its longest-lived member expires;
// prune_index drops digests whose token key has already expired.
const indexFuncs = `
local function extend_index(key, exp, now)
  local ttl = redis.call("PTTL", key)
  if ttl < 0 or now + ttl < exp then
    redis.call("PEXPIREAT", key, exp)
  end
end

local function prune_index(key, token_prefix)
  local removed = 0
  for _, digest in ipairs(redis.call("SMEMBERS", key)) do
    if redis.call("EXISTS", token_prefix .. digest) == 0 then
      redis.call("SREM", key, digest)
      removed = removed + 1
    end
  end
  return removed
end
`

// persistScript writes a token hash only when the key is free.
// KEYS[1] = token key, KEYS[2] = user index
// ARGV[1] = uid, ARGV[2] = username, ARGV[3] = expiry (unix ms), ARGV[4] = digest
// ARGV[5] = now (unix ms), ARGV[6] = token key prefix
const persistScript = indexFuncs + `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "uid", ARGV[1], "username", ARGV[2], "exp", ARGV[3])
redis.call("PEXPIREAT", KEYS[1], ARGV[3])
prune_index(KEYS[2], ARGV[6])
redis.call("SADD", KEYS[2], ARGV[4])
extend_index(KEYS[2], tonumber(ARGV[3]), tonumber(ARGV[5]))
return 1
`

var persistLua = redis.NewScript(persistScript)

// rotateScript consumes the old token and, if it was live, writes the
// replacement for the same owner. Both happen inside one script execution.
// KEYS[1] = old token key, KEYS[2] = new token key
// ARGV[1] = now (unix ms), ARGV[2] = new expiry (unix ms)
// ARGV[3] = user index prefix, ARGV[4] = old digest, ARGV[5] = new digest
const rotateScript = indexFuncs + `
local row = redis.call("HMGET", KEYS[1], "uid", "username", "exp")
if not row[1] then
  return {0}
end
if redis.call("EXISTS", KEYS[2]) == 1 then
  return {3}
end

local user_key = ARGV[3] .. row[1]
redis.call("DEL", KEYS[1])
redis.call("SREM", user_key, ARGV[4])

if tonumber(row[3]) <= tonumber(ARGV[1]) then
  return {1}
end

redis.call("HSET", KEYS[2], "uid", row[1], "username", row[2], "exp", ARGV[2])
redis.call("PEXPIREAT", KEYS[2], ARGV[2])
redis.call("SADD", user_key, ARGV[5])
extend_index(user_key, tonumber(ARGV[2]), tonumber(ARGV[1]))
return {2, row[1], row[2]}
`

var rotateLua = redis.NewScript(rotateScript)

// revokeScript deletes one token and drops it from its owner's index.
// KEYS[1] = token key; ARGV[1] = user index prefix, ARGV[2] = digest
const revokeScript = `
local uid = redis.call("HGET", KEYS[1], "uid")
redis.call("DEL", KEYS[1])
if uid then
  redis.call("SREM", ARGV[1] .. uid, ARGV[2])
end
return 1
`

var revokeLua = redis.NewScript(revokeScript)

// revokeUserScript deletes every token listed in a user index.
// KEYS[1] = user index; ARGV[1] = token key prefix
const revokeUserScript = `
local members = redis.call("SMEMBERS", KEYS[1])
for _, digest in ipairs(members) do
  redis.call("DEL", ARGV[1] .. digest)
end
redis.call("DEL", KEYS[1])
return #members
`

var revokeUserLua = redis.NewScript(revokeUserScript)

// purgeIndexScript prunes one user index and deletes it once empty.
// KEYS[1] = user index; ARGV[1] = token key prefix
const purgeIndexScript = indexFuncs + `
local removed = prune_index(KEYS[1], ARGV[1])
if redis.call("SCARD", KEYS[1]) == 0 then
  redis.call("DEL", KEYS[1])
end
return removed
`

var purgeIndexLua = redis.NewScript(purgeIndexScript)

// Store keeps refresh tokens in Redis. Each token is a hash at
// <prefix>rt:<digest> with fields uid, username and exp, expiring on its own
// via PEXPIREAT. <prefix>ru:<uid> indexes the digests of a user and expires
// with its longest-lived member.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

var (
	_ store.RefreshTokenStore = (*Store)(nil)
	_ store.Purger            = (*Store)(nil)
)

// New returns a Store. An empty prefix selects DefaultPrefix.
//
// The scripts derive user index keys from token rows, so every key must hash
// to one slot. With a *redis.ClusterClient a prefix without a hash tag is
// wrapped in one: "authcore:" becomes "{authcore}:".
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if _, ok := client.(*redis.ClusterClient); ok && !hasHashTag(prefix) {
		prefix = "{" + strings.TrimSuffix(prefix, ":") + "}:"
	}
	return &Store{redis: client, prefix: prefix, now: time.Now}
}

func hasHashTag(prefix string) bool {
	open := strings.IndexByte(prefix, '{')
	if open < 0 {
		return false
	}
	closing := strings.IndexByte(prefix[open+1:], '}')
	return closing > 0
}

func (s *Store) tokenPrefix() string {
	return s.prefix + "rt:"
}

func (s *Store) tokenKey(digest string) string {
	return s.tokenPrefix() + digest
}

func (s *Store) userPrefix() string {
	return s.prefix + "ru:"
}

func (s *Store) userKey(userID string) string {
	return s.userPrefix() + userID
}

// Persist writes a live token row and indexes it under its owner. Index
// entries of tokens that already expired are dropped on the way.
func (s *Store) Persist(ctx context.Context, owner store.Owner, key string, expiresAt time.Time) error {
	res, err := persistLua.Run(
		ctx,
		s.redis,
		[]string{s.tokenKey(key), s.userKey(owner.UserID)},
		owner.UserID,
		owner.Username,
		expiresAt.UnixMilli(),
		key,
		s.now().UnixMilli(),
		s.tokenPrefix(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if res == 0 {
		return &store.ConstraintError{Constraint: "refresh token key"}
	}
	return nil
}

// Redeem returns the owner of a live token and leaves the row in place.
func (s *Store) Redeem(ctx context.Context, key string) (store.Owner, error) {
	vals, err := s.redis.HMGet(ctx, s.tokenKey(key), "uid", "username", "exp").Result()
	if err != nil {
		return store.Owner{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	uid, _ := vals[0].(string)
	if uid == "" {
		return store.Owner{}, store.ErrNotFound
	}
	username, _ := vals[1].(string)
	expRaw, _ := vals[2].(string)
	expMs, err := strconv.ParseInt(expRaw, 10, 64)
	if err != nil {
		return store.Owner{}, fmt.Errorf("%w: corrupt expiry for token", ErrRedisUnavailable)
	}
	if expMs <= s.now().UnixMilli() {
		return store.Owner{}, store.ErrExpired
	}
	return store.Owner{UserID: uid, Username: username}, nil
}

// Rotate consumes key and writes next for the same owner in one script.
func (s *Store) Rotate(ctx context.Context, key string, next store.Replacement) (store.Owner, error) {
	result, err := rotateLua.Run(
		ctx,
		s.redis,
		[]string{s.tokenKey(key), s.tokenKey(next.Key)},
		s.now().UnixMilli(),
		next.ExpiresAt.UnixMilli(),
		s.userPrefix(),
		key,
		next.Key,
	).Result()
	if err != nil {
		return store.Owner{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return store.Owner{}, fmt.Errorf("%w: invalid rotate script response", ErrRedisUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return store.Owner{}, fmt.Errorf("%w: invalid rotate script status", ErrRedisUnavailable)
	}

	switch code {
	case scriptNotFound:
		return store.Owner{}, store.ErrNotFound
	case scriptExpired:
		return store.Owner{}, store.ErrExpired
	case scriptConflict:
		return store.Owner{}, &store.ConstraintError{Constraint: "refresh token key"}
	case scriptRotated:
		if len(parts) < 3 {
			return store.Owner{}, fmt.Errorf("%w: missing owner in rotate response", ErrRedisUnavailable)
		}
		uid, _ := parts[1].(string)
		username, _ := parts[2].(string)
		return store.Owner{UserID: uid, Username: username}, nil
	default:
		return store.Owner{}, fmt.Errorf("%w: unknown rotate status %d", ErrRedisUnavailable, code)
	}
}

// Revoke deletes one token. Unknown keys are not an error.
func (s *Store) Revoke(ctx context.Context, key string) error {
	if err := revokeLua.Run(ctx, s.redis, []string{s.tokenKey(key)}, s.userPrefix(), key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RevokeUser deletes every token indexed under userID.
func (s *Store) RevokeUser(ctx context.Context, userID string) error {
	if err := revokeUserLua.Run(ctx, s.redis, []string{s.userKey(userID)}, s.tokenPrefix()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// PurgeExpired prunes user indexes of digests whose token key has expired
// and returns how many entries were removed. Token rows themselves expire
// through PEXPIREAT.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	cluster, ok := s.redis.(*redis.ClusterClient)
	if !ok {
		return s.purgeNode(ctx, s.redis)
	}

	var total atomic.Int64
	err := cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
		n, err := s.purgeNode(ctx, node)
		total.Add(n)
		return err
	})
	return total.Load(), err
}

func (s *Store) purgeNode(ctx context.Context, node redis.UniversalClient) (int64, error) {
	var removed int64
	iter := node.Scan(ctx, 0, s.userPrefix()+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := purgeIndexLua.Run(ctx, s.redis, []string{iter.Val()}, s.tokenPrefix()).Int64()
		if err != nil {
			return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return removed, nil
}
