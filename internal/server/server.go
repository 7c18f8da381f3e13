// Package server exposes the kernel's HTTP/WS introspection surface (health,
// cost dashboard, recovery stats, and a live event feed) plus a POST
// /api/shutdown trigger.
// Grounded on the teacher's cmd/cliaimonitor/main.go (gorilla/mux router
// wiring, graceful-shutdown channel) adapted from a fleet dashboard to a
// kernel introspection API.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/agentic-qe/kernel/internal/kernel"
)

// Server is the HTTP/WS introspection surface over one *kernel.Kernel.
type Server struct {
	k        *kernel.Kernel
	router   *mux.Router
	upgrader websocket.Upgrader

	// ShutdownChan closes once when a client calls POST /api/shutdown,
	// letting main's select loop treat an API request the same as a
	// process signal.
	ShutdownChan chan struct{}
}

// New builds the router. Call Handler to obtain the http.Handler to serve.
func New(k *kernel.Kernel) *Server {
	s := &Server{
		k:      k,
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		ShutdownChan: make(chan struct{}),
	}
	s.routes()
	return s
}

// RequestShutdown signals ShutdownChan, idempotently.
func (s *Server) RequestShutdown() {
	select {
	case <-s.ShutdownChan:
	default:
		close(s.ShutdownChan)
	}
}

// Handler returns the http.Handler to pass to http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/cost", s.handleCostDashboard).Methods(http.MethodGet)
	s.router.HandleFunc("/recovery", s.handleRecoveryStats).Methods(http.MethodGet)
	s.router.HandleFunc("/events", s.handleEventFeed)
	s.router.HandleFunc("/api/shutdown", s.handleShutdown).Methods(http.MethodPost)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// handleHealth reports one component's health from the orchestrator's cached
// sweep snapshot when ?component= is given (404 if none is cached), and
// {"status":"ok"} otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	component := r.URL.Query().Get("component")
	if component != "" {
		h, ok := s.k.Orchestrator.Health(component)
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, h)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleCostDashboard exposes the cost tracker's dashboard view
// (spec.md §4.5).
func (s *Server) handleCostDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.k.CostTracker.Dashboard())
}

// handleRecoveryStats exposes the orchestrator's per-component,
// per-strategy recovery statistics (spec.md §4.4).
func (s *Server) handleRecoveryStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.k.Orchestrator.RecoveryStats())
}

// handleShutdown lets instance.SendShutdownRequest trigger a graceful exit
// via RequestShutdown instead of a forced kill.
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	s.RequestShutdown()
	writeJSON(w, map[string]string{"status": "shutting down"})
}

// handleEventFeed upgrades to a WebSocket connection and relays bus events
// published to target "all" to the client until it disconnects. Events
// addressed to any other target are not relayed.
func (s *Server) handleEventFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	target := "server-feed-" + r.RemoteAddr
	ch := s.k.Bus.Subscribe(target, nil)
	defer s.k.Bus.Unsubscribe(target, ch)

	for event := range ch {
		if err := conn.WriteJSON(event); err != nil {
			return
		}
	}
}

