package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/driftlock/recall/internal/chat"
	"github.com/driftlock/recall/internal/config"
	"github.com/driftlock/recall/internal/memory"
)

// Server owns the HTTP listener and WebSocket hub.
type Server struct {
	httpServer *http.Server
	hub        *WebSocketHub
	addr       string
}

// New builds the server: routes, middleware chain, and WebSocket hub. The
// hub is wired into the memory service so enrichment completions reach
// connected clients.
func New(cfg *config.Config, mem *memory.Service, chatSvc *chat.Service) *Server {
	hub := NewWebSocketHub()
	mem.OnProfileUpdated(hub.BroadcastProfileUpdated)

	handlers := NewAPIHandlers(mem, chatSvc)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", handlers.HandleChat)
	mux.HandleFunc("/api/profile", handlers.HandleProfile)
	mux.HandleFunc("/api/storage", handlers.HandleStorage)
	mux.HandleFunc("/api/context", handlers.HandleContext)
	mux.HandleFunc("/healthz", handlers.HandleHealth)
	mux.Handle("/ws", hub)

	rateLimiter := NewRateLimiter(cfg.Server.RateLimitPerSec, cfg.Server.RateLimitBurst)
	var handler http.Handler = mux
	handler = RateLimitMiddleware(handler, rateLimiter)
	handler = RequireAuth(handler, cfg.Security.APIToken)
	handler = securityHeadersMiddleware(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		hub:  hub,
		addr: addr,
	}
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WebSocketHub { return s.hub }

// Start begins serving. It returns the bound address, which differs from the
// configured one when port 0 was requested.
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.addr = listener.Addr().String()

	go s.hub.Run()
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("server: http server error: %v", err)
		}
	}()

	log.Printf("server: listening on %s", s.addr)
	return s.addr, nil
}

// Shutdown stops the HTTP server and WebSocket hub gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	return s.httpServer.Shutdown(ctx)
}
