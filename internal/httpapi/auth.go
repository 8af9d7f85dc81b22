package httpapi

import (
	"errors"
	"net/http"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/internal/logging"
	"github.com/MrEthical07/goToken/middleware"
	"go.uber.org/zap"
)

type credentialsRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type registerResponse struct {
	UserID     string    `json:"user_id"`
	Identifier string    `json:"identifier"`
	Roles      []string  `json:"roles"`
	CreatedAt  time.Time `json:"created_at"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int64     `json:"expires_in"`
}

type meResponse struct {
	Subject  string    `json:"subject"`
	Roles    []string  `json:"roles"`
	IssuedAt time.Time `json:"issued_at"`
}

// POST /api/auth/register
func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !readJSON(w, r, &req) {
		return
	}

	u, err := h.engine.Register(r.Context(), goToken.RegisterRequest{
		Identifier: req.Identifier,
		Password:   req.Password,
		Roles:      h.defaultRoles,
	})
	if err != nil {
		switch {
		case errors.Is(err, goToken.ErrInvalidRegistration):
			writeError(w, http.StatusBadRequest, "invalid_request", "identifier is required")
		case errors.Is(err, goToken.ErrWeakCredential):
			writeError(w, http.StatusBadRequest, "weak_password", err.Error())
		case errors.Is(err, goToken.ErrDuplicateIdentity):
			writeError(w, http.StatusConflict, "identity_exists", "identifier already registered")
		case errors.Is(err, goToken.ErrRegisterRateLimited):
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many registration attempts")
		default:
			logging.From(r.Context()).Error("register failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "server_error", "")
		}
		return
	}

	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	writeJSON(w, http.StatusCreated, registerResponse{
		UserID:     u.UserID,
		Identifier: u.Identifier,
		Roles:      roles,
		CreatedAt:  u.CreatedAt,
	})
}

// POST /api/auth/login
func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !readJSON(w, r, &req) {
		return
	}

	tok, err := h.engine.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, goToken.ErrInvalidCredential):
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		case errors.Is(err, goToken.ErrLoginRateLimited):
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many login attempts")
		case errors.Is(err, goToken.ErrNoKeyConfigured):
			logging.From(r.Context()).Error("login without signing key", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "unavailable", "")
		default:
			logging.From(r.Context()).Error("login failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "server_error", "")
		}
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     tok.Raw,
		TokenType: "Bearer",
		ExpiresAt: tok.ExpiresAt,
		ExpiresIn: int64(tok.ExpiresAt.Sub(tok.IssuedAt) / time.Second),
	})
}

// GET /api/auth/me
func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		Subject:  id.Subject,
		Roles:    id.Roles,
		IssuedAt: id.IssuedAt,
	})
}

// GET /.well-known/jwks.json
func (h *handler) jwks(w http.ResponseWriter, r *http.Request) {
	body, err := h.engine.JWKS()
	if err != nil {
		logging.From(r.Context()).Error("render jwks", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error", "")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(body)
}

type keyResponse struct {
	ID        string     `json:"kid"`
	Algorithm string     `json:"alg"`
	NotBefore *time.Time `json:"not_before,omitempty"`
	NotAfter  *time.Time `json:"not_after,omitempty"`
	CanSign   bool       `json:"can_sign"`
	Current   bool       `json:"current"`
}

// GET /api/admin/keys
func (h *handler) keys(w http.ResponseWriter, _ *http.Request) {
	infos := h.engine.Keys()
	out := make([]keyResponse, 0, len(infos))
	for _, k := range infos {
		kr := keyResponse{
			ID:        k.ID,
			Algorithm: string(k.Algorithm),
			CanSign:   k.CanSign,
			Current:   k.Current,
		}
		if !k.NotBefore.IsZero() {
			nb := k.NotBefore
			kr.NotBefore = &nb
		}
		if !k.NotAfter.IsZero() {
			na := k.NotAfter
			kr.NotAfter = &na
		}
		out = append(out, kr)
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": out})
}
