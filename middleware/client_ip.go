package middleware

import (
	"net"
	"net/http"

	goToken "github.com/MrEthical07/goToken"
)

// ClientIP stores the request's remote address in the context with
// [goToken.WithClientIP]. Run a trusted proxy-header middleware first when
// the service sits behind a load balancer.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(goToken.WithClientIP(r.Context(), ip)))
	})
}
