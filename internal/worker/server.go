package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"bedrockbot/internal/domain"
	"bedrockbot/internal/metrics"
)

const maxPayloadSize = 1 << 20 // 1MB

// Server exposes the dispatch endpoint. It acknowledges acceptance with 202
// and runs the handler in the background: dispatchers never wait on the
// business outcome.
type Server struct {
	host    string
	port    int
	handler *Handler
	logger  *slog.Logger
	server  *http.Server
}

// ServerConfig configures the worker's HTTP surface.
type ServerConfig struct {
	Host    string
	Port    int
	Handler *Handler
	Logger  *slog.Logger
}

// NewServer creates the worker server.
func NewServer(cfg ServerConfig) *Server {
	return &Server{
		host:    cfg.Host,
		port:    cfg.Port,
		handler: cfg.Handler,
		logger:  cfg.Logger,
	}
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /invoke", s.handleInvoke)
	mux.HandleFunc("GET /metrics", metrics.Collector.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("worker server starting", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("worker server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("worker server: %w", err)
	}
}

// Stop closes the server immediately.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadSize))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var payload domain.DispatchPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	// Acceptance is acknowledged before the invocation runs; the dispatcher
	// only ever observes this 202. Field-level problems surface to the user
	// through the pipeline, not through the dispatch response.
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})

	go func() {
		// Bounded by generation latency, not the inbound request lifetime.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.handler.Handle(ctx, payload)
	}()
}
