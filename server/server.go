package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/livedash/pkg/domain"
	"github.com/umputun/livedash/pkg/rss"
)

//go:generate moq -out mocks/config.go -pkg mocks -skip-ensure -fmt goimports . ConfigProvider
//go:generate moq -out mocks/dashboard.go -pkg mocks -skip-ensure -fmt goimports . Dashboard
//go:generate moq -out mocks/identity.go -pkg mocks -skip-ensure -fmt goimports . IdentityStore
//go:generate moq -out mocks/records.go -pkg mocks -skip-ensure -fmt goimports . RecordStore

// Server represents HTTP server instance
type Server struct {
	config     ConfigProvider
	dashboard  Dashboard
	identities IdentityStore
	records    RecordStore
	rss        *rss.Generator
	version    string
	debug      bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// Dashboard provides the published view of the session
type Dashboard interface {
	View() domain.View
	Sources() []domain.SourceDescriptor
}

// IdentityStore keeps the active identity of the session
type IdentityStore interface {
	Current() *domain.Identity
	Set(id *domain.Identity)
}

// RecordStore writes records into source collections
type RecordStore interface {
	PutRecord(ctx context.Context, collection string, rec domain.Record) error
	DeleteRecord(ctx context.Context, collection, id string) error
	Ping(ctx context.Context) error
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// Params defines server dependencies
type Params struct {
	Config     ConfigProvider
	Dashboard  Dashboard
	Identities IdentityStore
	Records    RecordStore
	BaseURL    string
	Version    string
	Debug      bool
}

// New initializes a new server instance
func New(p Params) *Server {
	baseURL := p.BaseURL
	if baseURL == "" {
		listen, _ := p.Config.GetServerConfig()
		baseURL = "http://localhost" + listen
	}

	s := &Server{
		config:     p.Config,
		dashboard:  p.Dashboard,
		identities: p.Identities,
		records:    p.Records,
		rss:        rss.NewGenerator(baseURL),
		version:    p.Version,
		debug:      p.Debug,
		router:     routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	lgr.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:              listen,
		Handler:           s.router,
		ReadHeaderTimeout: timeout,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		lgr.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		s.lock.Lock()
		defer s.lock.Unlock()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			lgr.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("livedash", "umputun", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)
		r.HandleFunc("GET /dashboard", s.dashboardHandler)
		r.HandleFunc("GET /stats", s.statsHandler)
		r.HandleFunc("GET /feed", s.feedHandler)
		r.HandleFunc("GET /sources", s.sourcesHandler)

		r.HandleFunc("GET /identity", s.getIdentityHandler)
		r.HandleFunc("PUT /identity", s.setIdentityHandler)
		r.HandleFunc("DELETE /identity", s.clearIdentityHandler)

		r.HandleFunc("PUT /records/{collection}/{id}", s.putRecordHandler)
		r.HandleFunc("DELETE /records/{collection}/{id}", s.deleteRecordHandler)
	})

	s.router.HandleFunc("GET /rss", s.rssHandler)
}

// renderJSON sends JSON response
func renderJSON(w http.ResponseWriter, _ *http.Request, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			lgr.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// renderError sends error response as JSON
func renderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	renderJSON(w, r, code, map[string]string{"error": errMsg})
}
