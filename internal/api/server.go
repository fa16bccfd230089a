package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/hookd/internal/events"
	"github.com/mattjoyce/hookd/internal/host"
	"github.com/mattjoyce/hookd/internal/journal"
)

// HookTabler lists hooks and their callouts.
type HookTabler interface {
	HookTable() ([]host.HookInfo, error)
}

// JournalReader reads stored dispatches.
type JournalReader interface {
	Recent(ctx context.Context, hook string, limit int) ([]journal.Entry, error)
}

// Config holds API server configuration.
type Config struct {
	Listen string
	APIKey string
}

// Deps are the server's collaborators. Journal, Events and Metrics are
// optional; their endpoints answer 404 when absent.
type Deps struct {
	Hooks     HookTabler
	Libraries []string
	Journal   JournalReader
	Events    *events.Hub
	Metrics   http.Handler
}

// Server is the HTTP API server.
type Server struct {
	config    Config
	deps      Deps
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
	started   chan net.Addr
}

// New creates an API server.
func New(config Config, deps Deps, logger *slog.Logger) *Server {
	return &Server{
		config:    config,
		deps:      deps,
		logger:    logger,
		startedAt: time.Now(),
		started:   make(chan net.Addr, 1),
	}
}

// Started receives the bound address once the listener is up.
func (s *Server) Started() <-chan net.Addr {
	return s.started
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start listens and serves until ctx is cancelled (blocking).
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("api listen %s: %w", s.config.Listen, err)
	}

	s.server = &http.Server{
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		// Request contexts end with ctx so open event streams let Shutdown finish.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	s.logger.Info("API server starting", "listen", ln.Addr().String())
	s.started <- ln.Addr()

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/hooks", s.handleHooks)
		r.Get("/dispatches", s.handleDispatches)
		r.Get("/events", s.handleEvents)
		r.Get("/metrics", s.handleMetrics)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
