package authcore

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MinSecretLength is the shortest HS256 signing secret Validate accepts.
const MinSecretLength = 32

// maxLeeway mirrors the bound enforced by jwt.NewIssuer.
const maxLeeway = 2 * time.Minute

// Config is the complete engine configuration.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable. Builder copies the value it is given.
type Config struct {
	JWT      JWTConfig
	Refresh  RefreshConfig
	Password PasswordConfig
	Store    StoreConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures access token issuance. Secret has no default: an
// engine cannot be built without one.
type JWTConfig struct {
	Secret    []byte
	AccessTTL time.Duration
	Leeway    time.Duration
	Issuer    string
	Audience  string
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RotationMode selects how a refresh token behaves once redeemed.
type RotationMode int

const (
	// RotationRotating consumes the presented token and returns a
	// replacement. Of concurrent redemptions of one token at most one wins.
	RotationRotating RotationMode = iota
	// RotationStatic leaves the token in place. It stays redeemable until
	// it expires or is revoked.
	RotationStatic
)

func (m RotationMode) String() string {
	switch m {
	case RotationRotating:
		return "rotating"
	case RotationStatic:
		return "static"
	default:
		return fmt.Sprintf("RotationMode(%d)", int(m))
	}
}

// ParseRotationMode accepts "rotating" or "static" in any case. An empty
// string selects RotationRotating.
func ParseRotationMode(s string) (RotationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rotating":
		return RotationRotating, nil
	case "static":
		return RotationStatic, nil
	default:
		return 0, fmt.Errorf("unknown refresh rotation mode %q", s)
	}
}

// RefreshConfig configures opaque refresh tokens.
type RefreshConfig struct {
	TTL      time.Duration
	Rotation RotationMode
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters and hashing pool sizing.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// UpgradeOnLogin re-hashes a stored hash produced with weaker
	// parameters after a successful login.
	UpgradeOnLogin bool
	// PoolSize bounds concurrent hash/verify calls. Zero selects
	// password.DefaultPoolSize.
	PoolSize int
}

/*
====================================
STORE / SECURITY CONFIG
====================================
*/

// StoreConfig bounds every user and refresh store call.
type StoreConfig struct {
	OperationTimeout time.Duration
}

// SecurityConfig tunes the failed-login limiter. The limiter is active only
// when the builder is given a Redis client.
type SecurityConfig struct {
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	EnableIPThrottle      bool
	RedisPrefix           string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles counters and the validate latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a configuration with every field set except
// JWT.Secret.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL: 15 * time.Minute,
			Leeway:    5 * time.Second,
			Issuer:    "authcore",
		},
		Refresh: RefreshConfig{
			TTL:      7 * 24 * time.Hour,
			Rotation: RotationRotating,
		},
		Password: PasswordConfig{
			Memory:         19 * 1024,
			Time:           2,
			Parallelism:    1,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Store: StoreConfig{
			OperationTimeout: 3 * time.Second,
		},
		Security: SecurityConfig{
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
			EnableIPThrottle:      false,
			RedisPrefix:           "authcore:",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field. It does not check argon2
// minimums; password.NewArgon2 does that during Build.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.Secret) == 0 {
		return errors.New("JWT Secret is required")
	}
	if len(c.JWT.Secret) < MinSecretLength {
		return fmt.Errorf("JWT Secret must be at least %d bytes", MinSecretLength)
	}
	if c.JWT.AccessTTL < time.Second {
		return errors.New("JWT AccessTTL must be at least 1s")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > maxLeeway {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}
	if c.JWT.Issuer != "" && strings.TrimSpace(c.JWT.Issuer) == "" {
		return errors.New("JWT Issuer must not be blank")
	}

	// Refresh
	if c.Refresh.TTL <= 0 {
		return errors.New("Refresh TTL must be > 0")
	}
	if c.Refresh.TTL <= c.JWT.AccessTTL {
		return errors.New("Refresh TTL must be longer than JWT AccessTTL")
	}
	if c.Refresh.Rotation != RotationRotating && c.Refresh.Rotation != RotationStatic {
		return errors.New("unsupported Refresh Rotation mode")
	}

	// Password
	if c.Password.PoolSize < 0 {
		return errors.New("Password PoolSize must be >= 0")
	}

	// Store
	if c.Store.OperationTimeout <= 0 {
		return errors.New("Store OperationTimeout must be > 0")
	}

	// Security
	if c.Security.MaxLoginAttempts <= 0 {
		return errors.New("Security MaxLoginAttempts must be > 0")
	}
	if c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security LoginCooldownDuration must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
