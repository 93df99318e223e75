package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/isdmx/coderun/config"
	"github.com/isdmx/coderun/engine"
	"github.com/isdmx/coderun/language"
	"github.com/isdmx/coderun/metrics"
)

// MaxBodyBytes caps the size of a request body
const MaxBodyBytes = 10 << 20

// LanguageLister reports the configured languages
type LanguageLister interface {
	Availability() []language.Availability
}

// Server is the REST transport
type Server struct {
	config    *config.Config
	logger    *zap.Logger
	executor  engine.Executor
	languages LanguageLister
	metrics   *metrics.Collector
	router    *chi.Mux

	httpServer *http.Server
	now        func() time.Time
}

// New creates a Server and registers its routes
func New(cfg *config.Config, logger *zap.Logger, executor engine.Executor, languages LanguageLister, collector *metrics.Collector) *Server {
	s := &Server{
		config:    cfg,
		logger:    logger,
		executor:  executor,
		languages: languages,
		metrics:   collector,
		router:    chi.NewRouter(),
		now:       time.Now,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/execute", s.handleExecute)
		r.Get("/health", s.handleHealth)
		r.Get("/languages", s.handleLanguages)
	})

	if s.config.Metrics.Enabled && s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	var req engine.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, engine.InvalidRequest("Request body too large"))
			return
		}
		s.writeJSON(w, http.StatusBadRequest, engine.InvalidRequest("Invalid JSON body"))
		return
	}

	result := s.executor.Execute(r.Context(), req)
	s.writeJSON(w, statusCode(result), result)
}

// statusCode maps a result to its HTTP status
func statusCode(result engine.Result) int {
	switch {
	case engine.IsClientError(result):
		return http.StatusBadRequest
	case result.Status == engine.StatusInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"languages": s.languages.Availability(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// Start binds the REST port and serves in the background
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Server.RESTPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve serves on listener in the background
func (s *Server) Serve(listener net.Listener) error {
	// Writes must outlast compile plus run timeouts.
	writeTimeout := s.config.CompileTimeout() + s.config.RunTimeout() + 15*time.Second

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("starting REST server", zap.String("addr", listener.Addr().String()))
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("REST server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("stopping REST server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
