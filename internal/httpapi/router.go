// Package httpapi is the HTTP surface of the gotoken service: registration,
// login, the caller's identity, the public key set and metrics.
package httpapi

import (
	"net/http"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/internal/logging"
	"github.com/MrEthical07/goToken/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// AdminRole grants access to /api/admin.
const AdminRole = "admin"

// Options configures the router.
type Options struct {
	Engine *goToken.Engine
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
	Logger  *zap.Logger
	// DefaultRoles are assigned to self-registered users.
	DefaultRoles []string
}

type handler struct {
	engine       *goToken.Engine
	logger       *zap.Logger
	defaultRoles []string
}

// NewRouter wires every route.
func NewRouter(opts Options) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{
		engine:       opts.Engine,
		logger:       logger,
		defaultRoles: opts.DefaultRoles,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestIDHeader)
	r.Use(chimw.Recoverer)
	r.Use(accessLog(logger))
	r.Use(middleware.ClientIP)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/.well-known/jwks.json", h.jwks)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(opts.Engine))
			r.Get("/me", h.me)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Guard(opts.Engine))
		r.Use(middleware.RequireRole(AdminRole))
		r.Get("/keys", h.keys)
	})

	return r
}

func requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rid := chimw.GetReqID(r.Context()); rid != "" {
			w.Header().Set("X-Request-ID", rid)
		}
		next.ServeHTTP(w, r)
	})
}

func accessLog(base *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			l := base.With(zap.String("request_id", chimw.GetReqID(r.Context())))

			next.ServeHTTP(ww, r.WithContext(logging.WithLogger(r.Context(), l)))

			l.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
