// Package web exposes the simulation pipeline over HTTP and pushes
// simulation events to websocket observers.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dkoutsos/agentsim/internal/config"
	"github.com/dkoutsos/agentsim/internal/natsbus"
	"github.com/dkoutsos/agentsim/internal/pipeline"
	"github.com/dkoutsos/agentsim/internal/registry"
	"github.com/dkoutsos/agentsim/internal/store"
)

type Server struct {
	store     *store.Store
	bus       *natsbus.Bus
	nats      *natsbus.Client
	orch      *pipeline.Orchestrator
	registry  *registry.Registry
	hub       *Hub
	cfg       config.WebConfig
	version   string
	startedAt time.Time
}

func NewServer(st *store.Store, bus *natsbus.Bus, orch *pipeline.Orchestrator, reg *registry.Registry, cfg config.WebConfig, version string) *Server {
	return &Server{
		store:     st,
		bus:       bus,
		orch:      orch,
		registry:  reg,
		hub:       NewHub(),
		cfg:       cfg,
		version:   version,
		startedAt: time.Now(),
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /simulate/{session_id}", s.handleSimulate)
	mux.HandleFunc("POST /simulations/{session_id}/edit", s.handleEdit)
	mux.HandleFunc("POST /simulations/{session_id}/review", s.handleReview)
	mux.HandleFunc("GET /scenarios", s.handleScenarios)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("/ws/{session_id}", s.handleWebSocket)

	return mux
}

func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	// Forward bus events to the websocket hub
	if err := s.subscribeEvents(); err != nil {
		return err
	}

	handler := s.withMiddleware(s.routes())
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	server := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	slog.Info("web server listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
