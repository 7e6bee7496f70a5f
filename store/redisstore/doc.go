// Package redisstore implements store.RefreshTokenStore on Redis.
//
// # Key layout
//
//	<prefix>rt:<digest>  hash {uid, username, exp}, PEXPIREAT exp
//	<prefix>ru:<uid>     set of digests owned by uid, PEXPIREAT max(exp)
//
// Rotation, persistence and revocation are Lua scripts, so a rotating
// redemption is a single atomic delete-and-insert on the server. Expired rows
// disappear through Redis key expiry. Persist and [Store.PurgeExpired] prune
// index entries left behind by those expiries.
//
// On Redis Cluster every key shares one hash tag taken from the prefix, so
// the store lives in a single slot.
//
// # What this package must NOT do
//
//   - Store raw refresh tokens. Keys are digests computed by the caller.
//   - Hold users. The users table stays in SQL.
package redisstore
