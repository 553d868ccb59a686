// Package server exposes the HTTP surface of the relay and drives the
// per-event pipeline: extract, generate, record, deliver.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robertomojr/whatsapp-backend/internal/config"
	"github.com/robertomojr/whatsapp-backend/internal/store"
)

// Generator produces a reply for inbound user text.
type Generator interface {
	Reply(ctx context.Context, text string) (string, error)
}

// Sender delivers a text message back to the origin channel.
type Sender interface {
	SendText(ctx context.Context, to, text string) ([]byte, error)
}

// Server holds the relay's immutable collaborators. They are shared across
// concurrent events without locking because none of them mutate after startup.
type Server struct {
	cfg    *config.Config
	gen    Generator
	sender Sender
	store  store.Store // nil when persistence is not configured
	logger *slog.Logger
	server *http.Server
}

func New(cfg *config.Config, gen Generator, sender Sender, st store.Store, logger *slog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		gen:    gen,
		sender: sender,
		store:  st,
		logger: logger,
	}
}

// Handler returns the route table. Split out from Start so tests can drive
// it with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /test", s.handleTestPage)
	mux.HandleFunc("GET /webhook", s.handleVerify)
	mux.HandleFunc("POST /webhook", s.handleEvent)
	mux.HandleFunc("POST /ask", s.handleAsk)
	mux.HandleFunc("GET /test-insert", s.handleTestInsert)

	return mux
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("http server starting", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}
