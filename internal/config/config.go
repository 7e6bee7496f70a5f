package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/MrEthical07/authcore"
)

// EnvPrefix is the environment variable prefix.
const EnvPrefix = "AUTHCORE_"

// ErrMissingSecret is returned by Load when jwt.secret is not configured.
var ErrMissingSecret = errors.New("config: jwt.secret is required")

// Storage backends for users and refresh tokens.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
	StorageRedis    = "redis"
)

// Config is the full process configuration of authd.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Log       LogConfig       `koanf:"log"`
	JWT       JWTConfig       `koanf:"jwt"`
	Refresh   RefreshConfig   `koanf:"refresh"`
	Password  PasswordConfig  `koanf:"password"`
	Security  SecurityConfig  `koanf:"security"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Audit     AuditConfig     `koanf:"audit"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// StorageConfig selects backends. Users live in Users; refresh tokens live in
// Refresh, which may be redis while users stay in postgres.
type StorageConfig struct {
	Users   string `koanf:"users"`
	Refresh string `koanf:"refresh"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	MigrateOnStart  bool          `koanf:"migrate_on_start"`
}

// RedisConfig enables the login limiter and, with storage.refresh=redis, the
// refresh token store. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type JWTConfig struct {
	Secret    string        `koanf:"secret"`
	AccessTTL time.Duration `koanf:"access_ttl"`
	Leeway    time.Duration `koanf:"leeway"`
	Issuer    string        `koanf:"issuer"`
	Audience  string        `koanf:"audience"`
}

type RefreshConfig struct {
	TTL           time.Duration `koanf:"ttl"`
	Rotation      string        `koanf:"rotation"`
	PurgeInterval time.Duration `koanf:"purge_interval"`
}

type PasswordConfig struct {
	Memory         uint32 `koanf:"memory"`
	Time           uint32 `koanf:"time"`
	Parallelism    uint8  `koanf:"parallelism"`
	PoolSize       int    `koanf:"pool_size"`
	UpgradeOnLogin bool   `koanf:"upgrade_on_login"`
}

type SecurityConfig struct {
	MaxLoginAttempts int           `koanf:"max_login_attempts"`
	LoginCooldown    time.Duration `koanf:"login_cooldown"`
	IPThrottle       bool          `koanf:"ip_throttle"`
	RedisPrefix      string        `koanf:"redis_prefix"`
}

// RateLimitConfig is the per-IP HTTP budget for the credential endpoints.
type RateLimitConfig struct {
	PerMinute int `koanf:"per_minute"`
	Burst     int `koanf:"burst"`
}

type AuditConfig struct {
	Enabled    bool `koanf:"enabled"`
	BufferSize int  `koanf:"buffer_size"`
}

type MetricsConfig struct {
	Enabled           bool `koanf:"enabled"`
	LatencyHistograms bool `koanf:"latency_histograms"`
}

// defaults mirrors authcore.DefaultConfig for the engine sections.
func defaults() map[string]any {
	engine := authcore.DefaultConfig()

	return map[string]any{
		"server.addr":             ":8080",
		"server.read_timeout":     "10s",
		"server.write_timeout":    "10s",
		"server.shutdown_timeout": "15s",

		"storage.users":   StoragePostgres,
		"storage.refresh": StoragePostgres,

		"database.max_open_conns":     25,
		"database.conn_max_idle_time": "5m",
		"database.migrate_on_start":   false,

		"log.level":  "info",
		"log.format": "json",

		"jwt.access_ttl": engine.JWT.AccessTTL.String(),
		"jwt.leeway":     engine.JWT.Leeway.String(),
		"jwt.issuer":     engine.JWT.Issuer,

		"refresh.ttl":            engine.Refresh.TTL.String(),
		"refresh.rotation":       engine.Refresh.Rotation.String(),
		"refresh.purge_interval": "1h",

		"password.memory":           engine.Password.Memory,
		"password.time":             engine.Password.Time,
		"password.parallelism":      engine.Password.Parallelism,
		"password.pool_size":        0,
		"password.upgrade_on_login": engine.Password.UpgradeOnLogin,

		"security.max_login_attempts": engine.Security.MaxLoginAttempts,
		"security.login_cooldown":     engine.Security.LoginCooldownDuration.String(),
		"security.ip_throttle":        false,
		"security.redis_prefix":       engine.Security.RedisPrefix,

		"ratelimit.per_minute": 30,
		"ratelimit.burst":      10,

		"audit.enabled":     false,
		"audit.buffer_size": engine.Audit.BufferSize,

		"metrics.enabled":            true,
		"metrics.latency_histograms": false,
	}
}

// Loader reads configuration from defaults, file and environment.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	overrides map[string]any
}

// Option configures a Loader.
type Option func(*Loader)

// WithConfigFile sets the YAML file to read. An empty path skips the file.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithEnvPrefix replaces EnvPrefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithOverrides applies values above every other source, keyed like
// "server.addr". CLI flags use it.
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) {
		l.overrides = values
	}
}

// NewLoader returns a loader with the default prefix.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: EnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load is shorthand for NewLoader(opts...).Load().
func Load(opts ...Option) (Config, error) {
	return NewLoader(opts...).Load()
}

// Load merges every source and validates the result.
func (l *Loader) Load() (Config, error) {
	if err := l.k.Load(mapProvider(defaults()), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", l.filePath, err)
		}
	}

	if err := l.k.Load(env.Provider(l.envPrefix, ".", l.envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	if len(l.overrides) > 0 {
		if err := l.k.Load(mapProvider(l.overrides), nil); err != nil {
			return Config{}, fmt.Errorf("load overrides: %w", err)
		}
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// envKey maps AUTHCORE_JWT_ACCESS_TTL to jwt.access_ttl.
func (l *Loader) envKey(name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, l.envPrefix))
	section, key, found := strings.Cut(name, "_")
	if !found {
		return name
	}
	return section + "." + key
}

// Validate checks the process-level settings. Engine settings are checked by
// authcore.Config.Validate through Engine.
func (c Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return ErrMissingSecret
	}

	switch c.Storage.Users {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("config: storage.users must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage.Users)
	}

	switch c.Storage.Refresh {
	case StoragePostgres, StorageMemory, StorageRedis:
	default:
		return fmt.Errorf("config: unknown storage.refresh %q", c.Storage.Refresh)
	}

	if c.Storage.Users == StoragePostgres || c.Storage.Refresh == StoragePostgres {
		if c.Database.URL == "" {
			return errors.New("config: database.url is required for postgres storage")
		}
	}
	if c.Storage.Refresh == StorageRedis && c.Redis.Addr == "" {
		return errors.New("config: redis.addr is required for redis refresh storage")
	}
	if c.Security.IPThrottle && c.Redis.Addr == "" {
		return errors.New("config: security.ip_throttle requires redis.addr")
	}

	if c.RateLimit.PerMinute <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("config: ratelimit.per_minute and ratelimit.burst must be > 0")
	}
	if c.Refresh.PurgeInterval < 0 {
		return errors.New("config: refresh.purge_interval must be >= 0")
	}

	_, err := c.Engine()
	return err
}

// Engine converts the engine sections into a validated authcore.Config.
func (c Config) Engine() (authcore.Config, error) {
	cfg := authcore.DefaultConfig()

	cfg.JWT.Secret = []byte(c.JWT.Secret)
	cfg.JWT.AccessTTL = c.JWT.AccessTTL
	cfg.JWT.Leeway = c.JWT.Leeway
	cfg.JWT.Issuer = c.JWT.Issuer
	cfg.JWT.Audience = c.JWT.Audience

	mode, err := authcore.ParseRotationMode(c.Refresh.Rotation)
	if err != nil {
		return authcore.Config{}, err
	}
	cfg.Refresh.TTL = c.Refresh.TTL
	cfg.Refresh.Rotation = mode

	cfg.Password.Memory = c.Password.Memory
	cfg.Password.Time = c.Password.Time
	cfg.Password.Parallelism = c.Password.Parallelism
	cfg.Password.PoolSize = c.Password.PoolSize
	cfg.Password.UpgradeOnLogin = c.Password.UpgradeOnLogin

	cfg.Security.MaxLoginAttempts = c.Security.MaxLoginAttempts
	cfg.Security.LoginCooldownDuration = c.Security.LoginCooldown
	cfg.Security.EnableIPThrottle = c.Security.IPThrottle
	cfg.Security.RedisPrefix = c.Security.RedisPrefix

	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.BufferSize

	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.LatencyHistograms

	if err := cfg.Validate(); err != nil {
		return authcore.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
