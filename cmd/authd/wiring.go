package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/MrEthical07/authcore/store/postgres"
	"github.com/MrEthical07/authcore/store/redisstore"
)

// backends holds the open connections behind the engine.
type backends struct {
	users  authcore.UserStore
	tokens authcore.RefreshTokenStore
	redis  redis.UniversalClient
	db     *sql.DB
}

func (b *backends) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.db != nil {
		_ = b.db.Close()
	}
}

// openBackends connects the stores selected by cfg.Storage. On error every
// connection opened so far is closed.
func openBackends(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *backends, err error) {
	b := &backends{}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	if storageUsesPostgres(cfg) {
		b.db, err = postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		b.db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		b.db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

		if cfg.Database.MigrateOnStart {
			if err = postgres.Migrate(ctx, b.db); err != nil {
				return nil, err
			}
			log.Info("migrations applied")
		}
	}

	if cfg.Redis.Addr != "" {
		b.redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err = b.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	}

	var mem *memory.Store
	memoryStore := func() *memory.Store {
		if mem == nil {
			mem = memory.New()
		}
		return mem
	}

	switch cfg.Storage.Users {
	case config.StoragePostgres:
		b.users = postgres.New(b.db)
	case config.StorageMemory:
		b.users = memoryStore()
	}

	switch cfg.Storage.Refresh {
	case config.StoragePostgres:
		b.tokens = postgres.New(b.db)
	case config.StorageMemory:
		b.tokens = memoryStore()
	case config.StorageRedis:
		b.tokens = redisstore.New(b.redis, cfg.Security.RedisPrefix)
	}

	log.Info("storage ready",
		slog.String("users", cfg.Storage.Users),
		slog.String("refresh", cfg.Storage.Refresh),
		slog.Bool("redis", b.redis != nil),
	)
	return b, nil
}

func buildEngine(cfg config.Config, b *backends, log *slog.Logger) (*authcore.Engine, error) {
	engineCfg, err := cfg.Engine()
	if err != nil {
		return nil, err
	}

	builder := authcore.New().
		WithConfig(engineCfg).
		WithUserStore(b.users).
		WithRefreshStore(b.tokens).
		WithLogger(log)

	if b.redis != nil {
		builder = builder.WithRedis(b.redis)
	}
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(authcore.NewSlogSink(log.With(slog.String("stream", "audit"))))
	}

	return builder.Build()
}
