// Package web provides the HTTP API of the factory inventory server: the
// inventory endpoints used by the table page and invctl, and the grid
// session endpoints that run the editable grid on the server.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/text/language"

	"github.com/JonMunkholm/factoryinv/internal/config"
	"github.com/JonMunkholm/factoryinv/internal/core"
	"github.com/JonMunkholm/factoryinv/internal/i18n"
	"github.com/JonMunkholm/factoryinv/internal/web/middleware"
)

// Server is the HTTP server for the inventory API.
type Server struct {
	service  *core.Service
	sessions *core.SessionRegistry
	cfg      *config.Config
	locale   language.Tag
	router   *chi.Mux
	server   *http.Server
	limiters []*rateLimiter
}

// NewServer creates a Server with all middleware and routes installed.
func NewServer(service *core.Service, sessions *core.SessionRegistry, cfg *config.Config) *Server {
	s := &Server{
		service:  service,
		sessions: sessions,
		cfg:      cfg,
		locale:   i18n.ParseLocale(cfg.Grid.Locale),
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5, "application/json"))
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newLimiter(s.cfg.Rate.RequestsPerMinute).middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", s.handleList)
			r.Get("/export", s.handleExport)
			r.Put("/batch", s.handleUpdateBatch)
			r.Post("/batch", s.handleCreateBatch)
			r.Put("/{uuid}", s.handleUpdateRow)

			r.Group(func(r chi.Router) {
				if s.cfg.Rate.Enabled {
					r.Use(s.newLimiter(s.cfg.Rate.ImportLimit).middleware)
				}
				r.Post("/import", s.handleImport)
			})
		})

		r.Route("/grid/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleSessionView)
				r.Delete("/", s.handleDeleteSession)
				r.Post("/refresh", s.handleSessionRefresh)
				r.Post("/edit", s.handleSessionOpen)
				r.Delete("/edit", s.handleSessionCancel)
				r.Patch("/cells", s.handleSessionSetCell)
				r.Post("/rows", s.handleSessionAddRow)
				r.Put("/rows/{rowId}", s.handleSessionPutRow)
				r.Post("/create", s.handleSessionCreate)
				r.Post("/submit", s.handleSessionSubmit)
			})
		})
	})
}

func (s *Server) newLimiter(perMinute int) *rateLimiter {
	rl := newRateLimiter(perMinute, time.Minute)
	s.limiters = append(s.limiters, rl)
	return rl
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its rate limiters.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limiters {
		rl.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.service.Ping(ctx); err != nil {
		s.respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"gridSessions":  s.sessions.Len(),
		"activeImports": s.service.Limiter().Active(),
		"importSlots":   s.service.Limiter().Available(),
	})
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are only logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
