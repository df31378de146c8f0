// Package api serves the notes REST API: session auth, categories and
// owner-scoped note CRUD, plus health, metrics and debug state.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/introspection"
	"github.com/aretw0/lifecycle"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/aretw0/notely/pkg/core"
)

// DefaultPageSize is the number of results per list page.
const DefaultPageSize = 100

// Component is anything whose state can be shown on the debug endpoint.
type Component interface {
	introspection.Introspectable
	introspection.Component
}

// Server wires the service to HTTP.
type Server struct {
	svc        *core.Service
	sessions   *SessionStore
	metrics    *Metrics
	logger     *slog.Logger
	origins    []string
	pageSize   int
	components map[string]Component
	secure     bool
	addr       string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for access and error logs.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessions replaces the session store.
func WithSessions(store *SessionStore) Option {
	return func(s *Server) {
		if store != nil {
			s.sessions = store
		}
	}
}

// WithMetrics replaces the metrics collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithAllowedOrigins sets the CORS origins allowed to send credentials.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithPageSize sets the list page size.
func WithPageSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithComponent exposes c on GET /api/debug/state under name.
func WithComponent(name string, c Component) Option {
	return func(s *Server) { s.components[name] = c }
}

// WithSecureCookies marks the session cookie Secure.
func WithSecureCookies(secure bool) Option {
	return func(s *Server) { s.secure = secure }
}

// New creates a Server.
func New(svc *core.Service, opts ...Option) *Server {
	s := &Server{
		svc:        svc,
		logger:     slog.Default(),
		origins:    []string{"http://localhost:3000"},
		pageSize:   DefaultPageSize,
		components: make(map[string]Component),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = NewSessionStore(DefaultSessionTTL, nil)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	s.components["service"] = svc
	return s
}

// Sessions returns the session store.
func (s *Server) Sessions() *SessionStore { return s.sessions }

// Metrics returns the metrics collectors.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.accessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.StripSlashes)
	r.Use(s.metrics.middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRFToken", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", s.authRoutes)
		r.Get("/debug/state", s.handleState)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)

			r.Route("/categories", func(r chi.Router) {
				r.Get("/", s.handleListCategories)
				r.Get("/{id}", s.handleGetCategory)
			})
			r.Route("/notes", func(r chi.Router) {
				r.Get("/", s.handleListNotes)
				r.Post("/", s.handleCreateNote)
				r.Get("/{id}", s.handleGetNote)
				r.Patch("/{id}", s.handlePatchNote)
				r.Put("/{id}", s.handlePutNote)
				r.Delete("/{id}", s.handleDeleteNote)
			})
		})
	})

	// Auth is also served at the root for clients configured without /api.
	r.Route("/auth", s.authRoutes)

	return r
}

func (s *Server) authRoutes(r chi.Router) {
	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)
	r.With(s.requireUser).Post("/logout", s.handleLogout)
	r.With(s.requireUser).Get("/me", s.handleMe)
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	s.addr = addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lifecycle.Go(ctx, func(ctx context.Context) error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := s.sessions.Prune(); n > 0 {
					s.logger.Debug("expired sessions pruned", "count", n)
				}
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("session pruner failed", "error", err)
	}))

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// accessLog writes one slog record per request.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]any, len(s.components)+1)
	for name, c := range s.components {
		out[name] = map[string]any{"type": c.ComponentType(), "state": c.State()}
	}
	out["server"] = map[string]any{"type": s.ComponentType(), "state": s.State()}
	writeJSON(w, http.StatusOK, out)
}
