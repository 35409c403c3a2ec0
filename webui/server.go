// Package webui serves the interactive editing surface: a JSON API over the
// render orchestrator, a websocket state stream and a small browser viewer.
package webui

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"rawdevelop/logging"
	"rawdevelop/webui/static"
)

// Server is the HTTP server for one orchestrator.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	config     ServerConfig
	logger     *logging.Logger
	api        *API
	stream     *StateStream
}

// ServerConfig configures the Server.
type ServerConfig struct {
	// Addr is the listen address, host:port.
	Addr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	API    APIConfig
	Stream StreamConfig

	// LogSkipPaths are not request-logged.
	LogSkipPaths []string

	// Version is reported by /health.
	Version string
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "localhost:8420",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		API: APIConfig{
			PreviewMaxEdge: 1024,
			ExportDir:      ".",
			DefaultLimit:   20,
			MaxLimit:       100,
		},
		Stream:       DefaultStreamConfig(),
		LogSkipPaths: []string{"/health", "/api/state"},
		Version:      "dev",
	}
}

// NewServer wires the API, the state stream and request logging around ctrl.
func NewServer(config ServerConfig, ctrl Controller, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("webui")

	s := &Server{
		mux:    http.NewServeMux(),
		config: config,
		logger: logger,
		api:    NewAPI(ctrl, config.API, logger),
		stream: NewStateStream(ctrl, config.Stream, logger),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.api.RegisterRoutes(s.mux)
	s.mux.HandleFunc("/ws", s.stream.HandleConnection)
	s.mux.HandleFunc("/", s.handleRoot)
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return NewLoggingMiddleware(s.logger, s.config.LogSkipPaths...).Handler(s.mux)
}

// handleRoot serves the viewer page.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data, err := static.ReadFile("index.html")
	if err != nil {
		http.Error(w, "viewer unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Clients int    `json:"clients"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.api.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.config.Version,
		Clients: s.stream.ClientCount(),
	})
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("http server listening", zap.String("addr", l.Addr().String()))
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured address and blocks until
// Shutdown is called.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Addr, err)
	}
	return s.Serve(l)
}

// Shutdown closes websocket clients and stops the HTTP server, waiting for
// in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	s.stream.Close()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown error: %w", err)
	}
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.config.Addr
}
