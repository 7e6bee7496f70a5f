package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/apperr"
)

// Require returns middleware that admits only requests carrying a valid
// access token. A missing or malformed Authorization header fails with
// authcore.ErrMissingCredential; an invalid or expired token fails with the
// error from Engine.Validate. Rejections never reach next.
func Require(engine *authcore.Engine, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				apperr.Write(w, r, logger, authcore.ErrEngineNotReady)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				apperr.Write(w, r, logger, authcore.ErrMissingCredential)
				return
			}

			id, err := engine.Validate(r.Context(), token)
			if err != nil {
				apperr.Write(w, r, logger, err)
				return
			}

			noteIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(authcore.WithIdentity(r.Context(), id)))
		})
	}
}

// Optional returns middleware that resolves the caller's identity without
// ever rejecting. Anything short of a valid token yields authcore.Anonymous.
func Optional(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := authcore.Anonymous()

			if engine != nil {
				if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
					if validated, err := engine.Validate(r.Context(), token); err == nil {
						id = validated
					}
				}
			}

			noteIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(authcore.WithIdentity(r.Context(), id)))
		})
	}
}

// bearerToken extracts the credential from "Bearer <token>". The scheme is
// matched case-insensitively.
func bearerToken(value string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(value), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}

	return token, true
}
