package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/logger"
	"github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/MrEthical07/authcore/store/memory"
)

type testServer struct {
	handler http.Handler
	engine  *authcore.Engine
}

func newTestServer(t *testing.T, mutate func(*authcore.Config)) *testServer {
	t.Helper()

	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	if mutate != nil {
		mutate(&cfg)
	}

	mem := memory.New()
	engine, err := authcore.New().
		WithConfig(cfg).
		WithUserStore(mem).
		WithRefreshStore(mem).
		WithLogger(logger.Discard()).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	return &testServer{
		engine: engine,
		handler: NewRouter(&RouterDeps{
			Engine:  engine,
			Logger:  logger.Discard(),
			Metrics: prometheus.Handler(prometheus.NewRegistry(engine)),
		}),
	}
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

type errorBody struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

func credentials(username, password string) map[string]string {
	return map[string]string{"username": username, "password": password}
}

func (s *testServer) registerAndLogin(t *testing.T) authResponse {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/register", "", credentials("alice", "secret1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/login", "", credentials("alice", "secret1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody[authResponse](t, rec)
}

func TestRegisterLoginMe(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/register", "", credentials("alice", "secret1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User registered", decodeBody[messageResponse](t, rec).Message)

	rec = s.do(t, http.MethodPost, "/api/login", "", credentials("alice", "secret1"))
	require.Equal(t, http.StatusOK, rec.Code)

	auth := decodeBody[authResponse](t, rec)
	assert.NotEmpty(t, auth.AccessToken)
	assert.NotEmpty(t, auth.RefreshToken)
	assert.Equal(t, "alice", auth.Username)
	assert.Equal(t, "Bearer", auth.TokenType)
	assert.Equal(t, int64((15 * time.Minute).Seconds()), auth.ExpiresIn)

	rec = s.do(t, http.MethodGet, "/api/me", auth.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody[meResponse](t, rec)
	assert.Equal(t, "alice", me.Username)
	assert.NotEmpty(t, me.ID)
}

func TestRegisterDuplicate(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/register", "", credentials("alice", "secret1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/register", "", credentials("alice", "another1"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "Username already exists", body.Message)
}

func TestRegisterValidationAggregatesFields(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/register", "", credentials("al", "123"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody[errorBody](t, rec)
	assert.Contains(t, body.Errors, "username")
	assert.Contains(t, body.Errors, "password")
}

func TestRegisterLengthCountsCharacters(t *testing.T) {
	s := newTestServer(t, nil)

	// Three characters, nine bytes.
	rec := s.do(t, http.MethodPost, "/api/register", "", credentials("用户名", "secret1"))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/register", "", credentials(strings.Repeat("a", 21), "secret1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMalformedJSON(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"/api/register", "/api/login", "/api/refresh"} {
		rec := s.do(t, http.MethodPost, path, "", `{"username":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "Malformed JSON body", decodeBody[errorBody](t, rec).Message)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	s := newTestServer(t, nil)
	s.registerAndLogin(t)

	wrong := s.do(t, http.MethodPost, "/api/login", "", credentials("alice", "wrong-password"))
	unknown := s.do(t, http.MethodPost, "/api/login", "", credentials("nobody", "secret1"))

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
}

func TestRefreshRotates(t *testing.T) {
	s := newTestServer(t, nil)
	auth := s.registerAndLogin(t)

	rec := s.do(t, http.MethodPost, "/api/refresh", "", map[string]string{"refresh_token": auth.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	next := decodeBody[authResponse](t, rec)
	assert.NotEqual(t, auth.RefreshToken, next.RefreshToken)
	assert.Equal(t, "alice", next.Username)

	rec = s.do(t, http.MethodPost, "/api/refresh", "", map[string]string{"refresh_token": auth.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid refresh token", decodeBody[errorBody](t, rec).Message)
}

func TestRefreshStaticModeConcurrent(t *testing.T) {
	s := newTestServer(t, func(cfg *authcore.Config) {
		cfg.Refresh.Rotation = authcore.RotationStatic
	})
	auth := s.registerAndLogin(t)

	const n = 8
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := s.do(t, http.MethodPost, "/api/refresh", "", map[string]string{"refresh_token": auth.RefreshToken})
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		assert.Equal(t, http.StatusOK, code, "request %d", i)
	}
}

func TestRefreshMissingToken(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/refresh", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[errorBody](t, rec).Errors, "refresh_token")
}

func TestGatedRoutesRejectMissingCredential(t *testing.T) {
	s := newTestServer(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/me"},
		{http.MethodPost, "/api/logout"},
		{http.MethodPost, "/api/logout/all"},
	} {
		rec := s.do(t, tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
		assert.Equal(t, "Missing or malformed authorization header", decodeBody[errorBody](t, rec).Message)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	s := newTestServer(t, nil)
	auth := s.registerAndLogin(t)

	rec := s.do(t, http.MethodPost, "/api/logout", auth.AccessToken, map[string]string{"refresh_token": auth.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/refresh", "", map[string]string{"refresh_token": auth.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutAll(t *testing.T) {
	s := newTestServer(t, nil)
	first := s.registerAndLogin(t)

	rec := s.do(t, http.MethodPost, "/api/login", "", credentials("alice", "secret1"))
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeBody[authResponse](t, rec)

	rec = s.do(t, http.MethodPost, "/api/logout/all", first.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, token := range []string{first.RefreshToken, second.RefreshToken} {
		rec = s.do(t, http.MethodPost, "/api/refresh", "", map[string]string{"refresh_token": token})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestWhoAmI(t *testing.T) {
	s := newTestServer(t, nil)
	auth := s.registerAndLogin(t)

	rec := s.do(t, http.MethodGet, "/api/whoami", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":false}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/whoami", "garbage", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":false}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/whoami", auth.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	who := decodeBody[whoamiResponse](t, rec)
	assert.True(t, who.Authenticated)
	assert.Equal(t, "alice", who.Username)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)
	s.registerAndLogin(t)

	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "authcore_login_success_total 1")
	assert.Contains(t, rec.Body.String(), "authcore_register_success_total 1")
}

func TestCredentialEndpointsRateLimited(t *testing.T) {
	s := newTestServer(t, nil)

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{Rate: 0.01, Burst: 2, CleanupInterval: time.Minute}, logger.Discard())
	t.Cleanup(rl.Stop)
	s.handler = NewRouter(&RouterDeps{Engine: s.engine, Logger: logger.Discard(), RateLimiter: rl})

	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, "/api/login", "", credentials("nobody", "secret1"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := s.do(t, http.MethodPost, "/api/login", "", credentials("nobody", "secret1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Gated routes are not budgeted.
	rec = s.do(t, http.MethodGet, "/api/whoami", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNilEngineFailsClosed(t *testing.T) {
	r := NewRouter(&RouterDeps{Logger: logger.Discard()})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer x")
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
