package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/authcore"
)

// requestNote lets gates further down the chain report the caller back to
// the logging middleware.
type requestNote struct {
	userID string
}

type requestNoteKey struct{}

func noteIdentity(ctx context.Context, id authcore.Identity) {
	if note, ok := ctx.Value(requestNoteKey{}).(*requestNote); ok && id.IsAuthenticated() {
		note.userID = id.ID()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// NewLoggingMiddleware logs one "http_request" line per request with method,
// path, status and duration_ms. Requests that passed a gate also carry
// user_id. 5xx logs at error, 4xx at warn.
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			note := &requestNote{}

			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestNoteKey{}, note)))

			durationMs := float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
			}
			if note.userID != "" {
				attrs = append(attrs, slog.String("user_id", note.userID))
			}

			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "http_request", attrs...)
		})
	}
}
