package apperr

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
)

// Body is the JSON error envelope.
type Body struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// BodyOf renders e without its cause.
func BodyOf(e *Error) Body {
	return Body{
		Status:  "error",
		Message: e.Message,
		Errors:  e.Fields,
	}
}

// Write classifies err and writes the response. Database and Internal
// failures are logged at error level with the cause; auth failures at debug.
func Write(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	appErr := Classify(err)
	if appErr == nil {
		appErr = Internal(nil)
	}

	if logger != nil {
		attrs := []slog.Attr{
			slog.String("kind", appErr.Kind.String()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		}
		if appErr.Err != nil {
			attrs = append(attrs, slog.Any("error", appErr.Err))
		}

		switch appErr.Kind {
		case KindDatabase, KindInternal:
			logger.LogAttrs(r.Context(), slog.LevelError, "request failed", attrs...)
		case KindAuth:
			logger.LogAttrs(r.Context(), slog.LevelDebug, "request unauthenticated", attrs...)
		}
	}

	if appErr.Kind == KindRateLimited {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(appErr)))
	}
	if appErr.Kind == KindAuth {
		w.Header().Set("WWW-Authenticate", `Bearer realm="authcore"`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Kind.Status())
	_ = json.NewEncoder(w).Encode(BodyOf(appErr))
}

func retryAfterSeconds(e *Error) int {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
