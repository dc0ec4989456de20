package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nats-io/nats.go"

	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/bus"
)

// Server exposes the health endpoint and the WebSocket alert relay. The
// operational surface of the system is the bus and the socket; there are no
// REST routes.
type Server struct {
	hub    *Hub
	bus    *bus.EventBus
	http   *http.Server
	logger *slog.Logger
}

// NewServer creates the HTTP server and mounts the routes.
func NewServer(host string, port int, hub *Hub, eventBus *bus.EventBus) *Server {
	s := &Server{
		hub:    hub,
		bus:    eventBus,
		logger: slog.Default().With("component", "api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", hub.HandleWebSocket)

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start begins relaying bus messages to the hub and serving HTTP. Blocks
// until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	if s.bus != nil {
		if err := s.relay(); err != nil {
			return fmt.Errorf("failed to attach bus relay: %w", err)
		}
	}

	go s.hub.Run()

	s.logger.Info("API server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// relay forwards bus alerts and incident events to connected clients.
// Alerts carry a camera id, so they route through the per-camera
// subscriptions; incident events go to everyone.
func (s *Server) relay() error {
	forward := func(typ MessageType) func(*nats.Msg) {
		return func(msg *nats.Msg) {
			var data interface{}
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				s.logger.Warn("Dropping malformed bus message", "subject", msg.Subject, "error", err)
				return
			}
			if typ == MessageTypeAlert {
				if fields, ok := data.(map[string]interface{}); ok {
					if cameraID, ok := fields["camera_id"].(string); ok && cameraID != "" {
						s.hub.BroadcastToCamera(cameraID, Message{Type: typ, Data: data})
						return
					}
				}
			}
			s.hub.Broadcast(Message{Type: typ, Data: data})
		}
	}

	if _, err := s.bus.Subscribe(bus.SubjectRiskAlert, forward(MessageTypeAlert)); err != nil {
		return err
	}
	if _, err := s.bus.Subscribe(bus.SubjectIncidentCreated, forward(MessageTypeIncident)); err != nil {
		return err
	}
	if _, err := s.bus.Subscribe(bus.SubjectIncidentUpdated, forward(MessageTypeIncident)); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
