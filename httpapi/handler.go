package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/apperr"
)

// maxBodyBytes bounds request bodies on the credential endpoints.
const maxBodyBytes = 1 << 16

// Service is the slice of authcore.Engine the handlers call.
type Service interface {
	Register(ctx context.Context, username, password string) (authcore.User, error)
	Login(ctx context.Context, username, password string) (authcore.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (authcore.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID string) error
}

// AuthHandler serves the /api endpoints.
type AuthHandler struct {
	service Service
	logger  *slog.Logger
}

// NewAuthHandler returns a handler over service.
func NewAuthHandler(service Service, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{service: service, logger: logger}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type authResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Username     string `json:"username"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type meResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type whoamiResponse struct {
	Authenticated bool   `json:"authenticated"`
	ID            string `json:"id,omitempty"`
	Username      string `json:"username,omitempty"`
}

// Register handles POST /api/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}

	if fields := validateRegistration(req.Username, req.Password); len(fields) > 0 {
		apperr.Write(w, r, h.logger, apperr.Validation(fields))
		return
	}

	if _, err := h.service.Register(r.Context(), req.Username, req.Password); err != nil {
		apperr.Write(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "User registered"})
}

// Login handles POST /api/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}

	pair, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		apperr.Write(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse(pair))
}

// Refresh handles POST /api/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.RefreshToken == "" {
		apperr.Write(w, r, h.logger, apperr.Validation(map[string][]string{
			"refresh_token": {"is required"},
		}))
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		apperr.Write(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse(pair))
}

// Logout handles POST /api/logout. It runs behind the required gate.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if _, err := authcore.RequireIdentity(r.Context()); err != nil {
		apperr.Write(w, r, h.logger, err)
		return
	}

	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.RefreshToken == "" {
		apperr.Write(w, r, h.logger, apperr.Validation(map[string][]string{
			"refresh_token": {"is required"},
		}))
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		apperr.Write(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out"})
}

// LogoutAll handles POST /api/logout/all.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	id, err := authcore.RequireIdentity(r.Context())
	if err != nil {
		apperr.Write(w, r, h.logger, err)
		return
	}

	if err := h.service.LogoutAll(r.Context(), id.ID()); err != nil {
		apperr.Write(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out everywhere"})
}

// Me handles GET /api/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, err := authcore.RequireIdentity(r.Context())
	if err != nil {
		apperr.Write(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{ID: id.ID(), Username: id.Username()})
}

// WhoAmI handles GET /api/whoami. Anonymous callers get
// {"authenticated":false}.
func (h *AuthHandler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	id := authcore.IdentityFromContext(r.Context())

	resp := whoamiResponse{Authenticated: id.IsAuthenticated()}
	if userID, username, ok := id.User(); ok {
		resp.ID = userID
		resp.Username = username
	}

	writeJSON(w, http.StatusOK, resp)
}

// decode reads a single JSON object into dst. On failure it writes a 400 and
// returns false.
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	if err := dec.Decode(dst); err != nil {
		apperr.Write(w, r, h.logger, apperr.BadRequest("Malformed JSON body"))
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		apperr.Write(w, r, h.logger, apperr.BadRequest("Malformed JSON body"))
		return false
	}
	return true
}

func toAuthResponse(pair authcore.TokenPair) authResponse {
	return authResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Username:     pair.Username,
		TokenType:    pair.TokenType,
		ExpiresIn:    int64(pair.ExpiresIn.Seconds()),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
