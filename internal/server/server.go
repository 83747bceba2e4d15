// Package server exposes the engine over HTTP and streams store-updated
// events over a websocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/scrypster/mneme/internal/backup"
	"github.com/scrypster/mneme/internal/config"
	"github.com/scrypster/mneme/internal/engine"
	"github.com/scrypster/mneme/internal/importer"
)

// Server is the HTTP surface of the engine.
type Server struct {
	engine  *engine.Engine
	cfg     *config.Config
	hub     *Hub
	backups *backup.Service
	notes   *importer.Importer
	handler http.Handler
}

// New builds the route table. hub may be nil, in which case /ws is not
// served. backups may be nil, in which case /api/backups is not served.
func New(eng *engine.Engine, cfg *config.Config, hub *Hub, backups *backup.Service) *Server {
	s := &Server{engine: eng, cfg: cfg, hub: hub, backups: backups, notes: importer.New(eng)}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/queue", s.listQueue)
	api.HandleFunc("POST /api/queue", s.addToQueue)
	api.HandleFunc("POST /api/consult", s.consult)
	api.HandleFunc("POST /api/evaluate", s.evaluate)
	api.HandleFunc("GET /api/memories", s.listMemories)
	api.HandleFunc("POST /api/memories", s.createMemory)
	api.HandleFunc("GET /api/memories/{id}", s.getMemory)
	api.HandleFunc("PATCH /api/memories/{id}", s.updateMemory)
	api.HandleFunc("DELETE /api/memories/{id}", s.deleteMemory)
	api.HandleFunc("GET /api/boot", s.boot)
	api.HandleFunc("GET /api/export", s.export)
	api.HandleFunc("POST /api/import", s.importSnapshot)
	api.HandleFunc("POST /api/reset", s.reset)
	api.HandleFunc("POST /api/import/notes", s.importNotes)
	api.HandleFunc("GET /api/import/notes/{job_id}", s.importNotesStatus)
	if backups != nil {
		api.HandleFunc("GET /api/backups", s.listBackups)
		api.HandleFunc("POST /api/backups", s.backupNow)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.health)
	mux.Handle("/api/", requireAuth(api, cfg))
	if hub != nil {
		mux.Handle("GET /ws", hub)
	}

	handler := rateLimit(mux, newLimiter(cfg.Server))
	s.handler = securityHeaders(handler)
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens on the configured address and serves until ctx is done.
// It returns the actual address being listened on (useful with port 0).
func (s *Server) Start(ctx context.Context) (string, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("ERROR: Server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("WARNING: Server shutdown error: %v", err)
		}
		if s.hub != nil {
			s.hub.Stop()
		}
	}()

	return listener.Addr().String(), nil
}
