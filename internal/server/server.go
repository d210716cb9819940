// Package server exposes the webhook router over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/danielolaszy/glue-relay/internal/config"
	"github.com/danielolaszy/glue-relay/internal/logging"
	"github.com/danielolaszy/glue-relay/internal/webhook"
)

// WebhookHandler processes one webhook body and returns the acknowledgement
// text sent back to the caller.
type WebhookHandler interface {
	Handle(ctx context.Context, body []byte) (string, error)
}

// DefaultWebhookPath is used when the config leaves the path empty.
const DefaultWebhookPath = "/api/jira/webhook"

// Server serves the webhook endpoint and a health check.
type Server struct {
	cfg     config.ServerConfig
	webhook WebhookHandler
	server  *http.Server
}

// New creates a Server. The listener is not opened until Run.
func New(cfg config.ServerConfig, handler WebhookHandler) *Server {
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = DefaultWebhookPath
	}

	s := &Server{
		cfg:     cfg,
		webhook: handler,
	}

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           applyMiddleware(s.registerRoutes()),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Link retries run inside the request, so leave room for them.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler (used for testing with httptest).
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) registerRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("POST "+s.cfg.WebhookPath, s.handleWebhook)
	return mux
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if s.cfg.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("webhook body too large", "limit", tooLarge.Limit)
			writeText(w, http.StatusRequestEntityTooLarge, "Payload Too Large")
			return
		}
		log.Warn("failed to read webhook body", "error", err)
		writeText(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	status, err := s.webhook.Handle(r.Context(), body)
	if err != nil {
		var validationErr *webhook.ValidationError
		if errors.As(err, &validationErr) {
			log.Warn("rejected webhook payload", "reason", validationErr.Error())
			writeText(w, http.StatusBadRequest, validationErr.Reason)
			return
		}
		log.Error("error handling webhook", "error", err)
		writeText(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeText(w, http.StatusOK, status)
}

func writeText(w http.ResponseWriter, code int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, text)
}

// Run listens on the configured address and serves until ctx is cancelled,
// then drains in-flight requests within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	// Bind first so a busy port fails fast.
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	return s.Serve(ctx, ln)
}

// Serve is Run with a caller-supplied listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info("webhook server listening",
			"addr", ln.Addr().String(),
			"path", s.cfg.WebhookPath)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logging.Info("shutting down webhook server")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
