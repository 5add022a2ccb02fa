// Package httpapi exposes the relay over HTTP: command submission for
// API-key holders, key administration for the master secret, and a small
// status surface.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/relayd/internal/config"
	"github.com/nextlevelbuilder/relayd/internal/store"
)

// CommandSubmitter forwards an API command into the relay and blocks for
// the correlated responses. Implemented by *relay.Engine.
type CommandSubmitter interface {
	Submit(ctx context.Context, command string) ([]string, error)
	ActiveRequests() int
}

// Server is the HTTP front of the relay.
type Server struct {
	cfg       config.ServerConfig
	relay     CommandSubmitter
	keys      *store.Service
	master    string
	limiter   *rateLimiter
	startedAt time.Time

	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates the HTTP server. masterSecret guards the key admin
// endpoints; an empty value disables them with an explicit error.
func NewServer(cfg config.ServerConfig, relay CommandSubmitter, keys *store.Service, masterSecret string) *Server {
	s := &Server{
		cfg:       cfg,
		relay:     relay,
		keys:      keys,
		master:    masterSecret,
		limiter:   newRateLimiter(),
		startedAt: time.Now(),
	}
	return s
}

// BuildMux creates and caches the HTTP mux with all routes registered.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleStatus)

	mux.HandleFunc("POST /api/command", s.handleCommand)
	mux.HandleFunc("POST /api/validate_key", s.handleValidateKey)

	mux.HandleFunc("POST /api/create_key", s.admin(s.handleCreateKey))
	mux.HandleFunc("POST /api/list_keys", s.admin(s.handleListKeys))
	mux.HandleFunc("POST /api/revoke_key", s.admin(s.handleRevokeKey))

	s.mux = mux
	return mux
}

// Start begins listening and blocks until ctx is cancelled or the listener
// fails.
func (s *Server) Start(ctx context.Context) error {
	mux := s.BuildMux()

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	slog.Info("http api starting", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http api server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// handleStatus serves a minimal human-readable landing page, useful for
// uptime probes from hosting dashboards.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<html><head><title>relayd</title></head><body>
<h3>relayd</h3>
<p>status: running</p>
<p>uptime: %s</p>
<p>active requests: %d</p>
</body></html>`,
		time.Since(s.startedAt).Round(time.Second),
		s.relay.ActiveRequests(),
	)
}

// admin wraps key administration handlers with the master-secret check.
// The secret travels in the request body so it never lands in access logs.
func (s *Server) admin(next func(http.ResponseWriter, *http.Request, json.RawMessage)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}
		if s.master == "" {
			slog.Error("key admin endpoint hit without MASTER_API_SECRET configured")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_misconfigured"})
			return
		}
		var auth struct {
			MasterSecret string `json:"master_secret"`
		}
		if err := json.Unmarshal(body, &auth); err != nil || auth.MasterSecret != s.master {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r, body)
	}
}

func readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "error", err)
	}
}
