// Package server exposes the engine over HTTP: POST /chat for
// messages and GET /health for operator visibility.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/crimsonworks/felix/pkg/engine"
	"github.com/crimsonworks/felix/pkg/gateway"
	"github.com/crimsonworks/felix/pkg/identity"
)

type chatRequest struct {
	Message string `json:"message"`
}

type healthResponse struct {
	Status             string `json:"status"`
	ProviderConfigured bool   `json:"provider_configured"`
	Identities         int    `json:"identities"`
	SaveFailures       uint64 `json:"save_failures"`
}

// Server wires HTTP transport to the engine. The caller key is the
// host part of the remote address; a shared network origin maps to one
// identity, which is an accepted limitation of this scheme.
type Server struct {
	engine  *engine.Engine
	store   *identity.Store
	gw      *gateway.Gateway
	httpSrv *http.Server
}

func New(addr string, eng *engine.Engine, store *identity.Store, gw *gateway.Gateway) *Server {
	s := &Server{engine: eng, store: store, gw: gw}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route table; split out so tests can drive it
// through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// ListenAndServe blocks until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	slog.Info("http server listening", "addr", s.httpSrv.Addr)
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"reply":  "I couldn't read that request. 😵",
			"status": "error",
		})
		return
	}

	callerKey := callerKeyFromRequest(r)
	reply := s.engine.Handle(r.Context(), callerKey, req.Message)

	code := http.StatusOK
	if strings.TrimSpace(req.Message) == "" {
		code = http.StatusBadRequest
	}
	writeJSON(w, code, reply)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:             "online",
		ProviderConfigured: s.gw.Configured(),
		Identities:         s.store.Count(),
		SaveFailures:       s.store.SaveFailures(),
	})
}

// callerKeyFromRequest uses the host part of the remote address so the
// key stays stable across ephemeral ports.
func callerKeyFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "err", err)
	}
}
