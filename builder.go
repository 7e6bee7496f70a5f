package authcore

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/logger"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/redis/go-redis/v9"
)

// dummyPassword is hashed once per engine so logins for unknown usernames
// spend the same argon2 time as real ones.
const dummyPassword = "authcore-timing-equalizer"

// Builder assembles an Engine.
//
// Builder instances are intended to be configured during initialization and
// used for exactly one Build call.
type Builder struct {
	config Config
	users  UserStore
	tokens RefreshTokenStore
	redis  redis.UniversalClient
	logger *slog.Logger
	sink   AuditSink
	now    func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig. The JWT secret must still
// be supplied through WithConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The value is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithUserStore sets the users table boundary. Required.
func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

// WithRefreshStore sets the refresh token backend. Required.
func (b *Builder) WithRefreshStore(tokens RefreshTokenStore) *Builder {
	b.tokens = tokens
	return b
}

// WithRedis enables the failed-login limiter. Without it logins are not
// throttled by the engine.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the engine logger. Nil discards engine logs.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets where audit events go when Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithClock overrides the time source for token issuance and expiry.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the engine.
//
// Build fails when the JWT secret is missing or short, when either store is
// missing, or when the argon2 parameters are below the accepted minimums.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.tokens == nil {
		return nil, errors.New("refresh token store required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	log := b.logger
	if log == nil {
		log = logger.Discard()
	}

	// -------- PASSWORD HASHER --------
	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	// -------- TOKEN ISSUER --------
	issuer, err := jwt.NewIssuer(jwt.Config{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		Leeway:   cfg.JWT.Leeway,
		Now:      now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		users:     b.users,
		tokens:    b.tokens,
		hasher:    password.NewPool(hasher, cfg.Password.PoolSize),
		dummyHash: dummy,
		issuer:    issuer,
		logger:    log.With(slog.String("component", "authcore")),
		metrics:   NewMetrics(cfg.Metrics),
		now:       now,
	}

	if b.redis != nil {
		engine.limiter = rate.New(b.redis, rate.Config{
			Prefix:                cfg.Security.RedisPrefix,
			EnableIPThrottle:      cfg.Security.EnableIPThrottle,
			MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
		})
	}

	countDrop := func(internalaudit.Event) { engine.metricInc(MetricAuditDropped) }
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop:     countDrop,
	}, b.sink)

	b.built = true

	return engine, nil
}
