package middleware

import "net/http"

// RequireRole responds 403 unless the identity stored by [Guard] holds role.
// Requests that never passed a Guard get 401.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				unauthorized(w, "")
				return
			}
			if !id.HasRole(role) {
				writeError(w, http.StatusForbidden, "forbidden", "missing role "+role)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
