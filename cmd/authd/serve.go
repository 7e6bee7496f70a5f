package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/httpapi"
	"github.com/MrEthical07/authcore/internal/logger"
	"github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/MrEthical07/authcore/middleware"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address (overrides server.addr)"},
			&cli.StringFlag{Name: "storage", Usage: "postgres or memory, for users and refresh tokens"},
			&cli.StringFlag{Name: "refresh-storage", Usage: "postgres, memory or redis"},
			&cli.BoolFlag{Name: "migrate", Usage: "apply migrations before serving"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.BoolFlag{Name: "trust-proxy", Usage: "take the client IP from X-Forwarded-For"},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stdout})

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	engine, err := buildEngine(cfg, b, log)
	if err != nil {
		return err
	}
	defer engine.Close()
	logSecurityReport(log, engine.SecurityReport())

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:            rate.Limit(float64(cfg.RateLimit.PerMinute) / 60.0),
		Burst:           cfg.RateLimit.Burst,
		CleanupInterval: 5 * time.Minute,
	}, log)
	defer limiter.Stop()

	deps := &httpapi.RouterDeps{
		Engine:      engine,
		Logger:      log,
		RateLimiter: limiter,
		TrustProxy:  c.Bool("trust-proxy"),
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = prometheus.Handler(prometheus.NewRegistry(engine))
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewRouter(deps),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", slog.String("addr", srv.Addr), slog.String("rotation", engine.Rotation().String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Refresh.PurgeInterval > 0 {
		g.Go(func() error {
			runPurgeLoop(gctx, engine, cfg.Refresh.PurgeInterval, log)
			return nil
		})
	}

	return g.Wait()
}

// purger is the slice of the engine the purge loop needs.
type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// runPurgeLoop deletes expired refresh tokens every interval until ctx ends.
func runPurgeLoop(ctx context.Context, p purger, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Warn("refresh purge failed", slog.Any("error", err))
				}
				continue
			}
			if n > 0 {
				log.Info("refresh tokens purged", slog.Int64("count", n))
			}
		}
	}
}

var _ purger = (*authcore.Engine)(nil)

func logSecurityReport(log *slog.Logger, r authcore.SecurityReport) {
	log.Info("security report",
		slog.String("signing_algorithm", r.SigningAlgorithm),
		slog.Duration("access_ttl", r.AccessTTL),
		slog.Duration("refresh_ttl", r.RefreshTTL),
		slog.String("refresh_rotation", r.RefreshRotation),
		slog.Group("argon2",
			slog.Uint64("memory_kb", uint64(r.Argon2.Memory)),
			slog.Uint64("time", uint64(r.Argon2.Time)),
			slog.Int("parallelism", int(r.Argon2.Parallelism)),
			slog.Int("pool_size", r.Argon2.PoolSize),
		),
		slog.Bool("login_rate_limit", r.LoginRateLimitActive),
		slog.Bool("ip_throttle", r.IPThrottleActive),
		slog.Bool("audit", r.AuditActive),
	)
	if !r.LoginRateLimitActive {
		log.Warn("failed-login limiter disabled: no redis configured")
	}
}
