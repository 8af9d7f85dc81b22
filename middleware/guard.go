package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goToken "github.com/MrEthical07/goToken"
)

// Authenticator is the part of [goToken.Engine] the guards need.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (goToken.Identity, error)
}

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by [Guard].
func IdentityFromContext(ctx context.Context) (goToken.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(goToken.Identity)
	return id, ok
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id goToken.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// Guard rejects requests without a valid bearer token with a 401 JSON error.
func Guard(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				unauthorized(w, "")
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, "")
				return
			}

			id, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				unauthorized(w, challengeDescription(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// unauthorized answers 401 with a Bearer challenge and a JSON body. An empty
// description means no token was presented.
func unauthorized(w http.ResponseWriter, description string) {
	challenge := `Bearer realm="gotoken"`
	code := "unauthorized"
	body := "missing bearer token"
	if description != "" {
		challenge += `, error="invalid_token", error_description="` + description + `"`
		code = "invalid_token"
		body = description
	}
	w.Header().Set("WWW-Authenticate", challenge)
	writeError(w, http.StatusUnauthorized, code, body)
}

func challengeDescription(err error) string {
	switch {
	case errors.Is(err, goToken.ErrExpired):
		return "token expired"
	case errors.Is(err, goToken.ErrEngineNotReady):
		return ""
	default:
		return "token invalid"
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
