package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 3, CleanupInterval: time.Minute}, nil)
	defer rl.Stop()

	handler := rl.Middleware()(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestFrom("198.51.100.1:1000"))
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
}

func TestRateLimiterRejectsOverBudget(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: rate.Limit(0.25), Burst: 1, CleanupInterval: time.Minute}, nil)
	defer rl.Stop()

	handler := rl.Middleware()(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFrom("198.51.100.2:1000"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFrom("198.51.100.2:2000"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "4", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Too many requests")

	// Other addresses have their own bucket.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFrom("198.51.100.3:1000"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Minute}, nil)
	defer rl.Stop()

	handler := rl.Middleware()(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), requestFrom("198.51.100.4:1000"))
	handler.ServeHTTP(httptest.NewRecorder(), requestFrom("198.51.100.5:1000"))
	assert.Equal(t, 2, rl.LimiterCount())

	rl.cleanup(time.Now())
	assert.Equal(t, 2, rl.LimiterCount())

	rl.cleanup(time.Now().Add(3 * time.Minute))
	assert.Equal(t, 0, rl.LimiterCount())
}

func TestRateLimiterStopTwice(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig(), nil)
	rl.Stop()
	rl.Stop()
}
