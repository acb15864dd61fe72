// Package web serves the public compatibility lookup and the admin dashboard.
package web

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/opticfit/internal/auth"
	"github.com/JonMunkholm/opticfit/internal/config"
	"github.com/JonMunkholm/opticfit/internal/core"
	"github.com/JonMunkholm/opticfit/internal/ratelimit"
	"github.com/JonMunkholm/opticfit/internal/storage"
	mw "github.com/JonMunkholm/opticfit/internal/web/middleware"
)

//go:embed static
var staticFiles embed.FS

const (
	loginPath     = "/admin/login"
	sessionCookie = "sid"
)

// Deps are the collaborators a Server routes to.
type Deps struct {
	Service *core.Service
	Login   *auth.LoginService
	Images  *storage.Images

	// Limiter backs the per-IP request limit. Nil disables it.
	Limiter ratelimit.Limiter

	// UploadsDir is served under /uploads when images are stored locally.
	UploadsDir string
}

// Server is the HTTP server for the lookup pages and the admin API.
type Server struct {
	cfg        *config.Config
	service    *core.Service
	login      *auth.LoginService
	images     *storage.Images
	limiter    ratelimit.Limiter
	uploadsDir string
	router     *chi.Mux
	server     *http.Server
}

// NewServer creates a Server and registers every route.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:        cfg,
		service:    deps.Service,
		login:      deps.Login,
		images:     deps.Images,
		limiter:    deps.Limiter,
		uploadsDir: deps.UploadsDir,
		router:     chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(s.securityHeaders)

	if s.cfg.Rate.Enabled && s.limiter != nil {
		s.router.Use(mw.RateLimit(s.limiter, s.cfg.Rate.RequestsPerMinute, time.Minute))
	}
}

func (s *Server) setupRoutes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	if s.uploadsDir != "" {
		s.router.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploadsDir))))
	}

	s.router.Get("/", s.handleHome)
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/makes", s.handleListMakes)
		r.Get("/makes/{id}/models", s.handleListModels)
		r.Get("/models/{id}/resolve", s.handleResolve)
	})

	verifier := s.login.Sessions()
	cookie := s.cfg.Auth.CookieName

	s.router.Route("/admin", func(r chi.Router) {
		r.Get("/login", s.handleLoginPage)

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireAdmin(verifier, cookie, loginPath, false))
			r.Get("/", s.handleAdminHome)
		})

		r.Route("/api", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.Delete("/login", s.handleLogout)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireAdmin(verifier, cookie, loginPath, true))

				r.Get("/audit", s.handleAuditLog)
				r.Post("/images", s.handleImageUpload)

				// CSV
				r.Post("/import/{table}", s.handleImport)
				r.Post("/preview/{table}", s.handlePreview)
				r.Get("/export/{table}", s.handleExport)
				r.Get("/template/{table}", s.handleTemplate)

				// Manual entry with domain rules
				r.Post("/models", s.handleCreateModel)
				r.Post("/optics", s.handleCreateOptic)
				r.Post("/plates", s.handleCreatePlate)
				r.Put("/models/{id}/footprints", s.handleUpdateModelFootprints)

				// Generic table editor
				r.Get("/{table}", s.handleListTable)
				r.Post("/{table}", s.handleCreateRow)
				r.Patch("/{table}/{id}", s.handleUpdateRow)
				r.Delete("/{table}/{id}", s.handleDeleteRow)
			})
		})
	})
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

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			// Optic images may live on the bucket's own host.
			h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'; img-src 'self' https: data:; object-src 'none'; frame-ancestors 'none'")
		}
		next.ServeHTTP(w, r)
	})
}
