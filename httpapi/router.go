package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
)

// RouterDeps holds what NewRouter wires together.
type RouterDeps struct {
	Engine *authcore.Engine
	Logger *slog.Logger

	// RateLimiter guards register, login and refresh. Nil disables it.
	RateLimiter *middleware.RateLimiter

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	// TrustProxy makes chi's RealIP rewrite RemoteAddr from
	// X-Forwarded-For / X-Real-IP.
	TrustProxy bool
}

// NewRouter builds the full route table.
//
// Middleware order: RequestID, [RealIP], ClientIP, Logging, Recovery. Gates
// are applied per route group.
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.ClientIP)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware(logger))

	h := NewAuthHandler(deps.Engine, logger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.Middleware())
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Require(deps.Engine, logger))
			r.Post("/logout", h.Logout)
			r.Post("/logout/all", h.LogoutAll)
			r.Get("/me", h.Me)
		})

		r.With(middleware.Optional(deps.Engine)).Get("/whoami", h.WhoAmI)
	})

	return r
}
