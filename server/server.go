// Package server exposes the hub over HTTP: the websocket endpoint and the debug routes.
package server

import (
	"circle-hub/auth"
	"circle-hub/domain"
	"circle-hub/domain/event"
	"circle-hub/internal"
	"circle-hub/observability"
	"circle-hub/runtime"
	"circle-hub/transport"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Authenticator interface {
	Authenticate(ctx context.Context, claimedUserID, credential string) (domain.Profile, error)
}

type Server struct {
	ctx           context.Context
	log           *slog.Logger
	hub           *runtime.Hub
	authenticator Authenticator
	monitor       *observability.MonitoringManager
	db            *badger.DB
	opts          transport.Options
	upgrader      websocket.Upgrader
	wg            sync.WaitGroup
}

// NewServer builds the HTTP surface. Connections live as long as ctx, not as long
// as the upgrade request. monitor and db are optional and only feed the debug routes.
func NewServer(ctx context.Context, log *slog.Logger, hub *runtime.Hub, authenticator Authenticator,
	opts transport.Options, monitor *observability.MonitoringManager, db *badger.DB) *Server {
	return &Server{
		ctx:           ctx,
		log:           log,
		hub:           hub,
		authenticator: authenticator,
		monitor:       monitor,
		db:            db,
		opts:          opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Mobile clients send no Origin, browsers are authenticated by token
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.serveWS)
	r.Get("/healthz", s.healthz)

	r.Route("/debug", func(r chi.Router) {
		r.Use(middleware.Logger)
		r.Get("/stats", s.stats)
		r.Get("/users", s.users)
		r.Post("/rooms/{roomID}/announce", s.announce)
		if s.db != nil {
			r.Get("/inspect", internal.InspectHandler(s.db, nil, s.statsMap))
		}
	})
	return r
}

// serveWS authenticates before upgrading, so that a rejected client leaves no state behind.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	handshake := auth.HandshakeFromRequest(r)
	profile, err := s.authenticator.Authenticate(r.Context(), handshake.UserID, handshake.Token)
	if err != nil {
		s.log.Debug("Handshake rejected", "user_id", handshake.UserID, "error", err)
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		s.log.Warn("Failed to upgrade WebSocket", "user_id", profile.UserID, "error", err)
		return
	}

	conn := transport.NewConnection(ws, profile.UserID, s.hub, s.opts, s.log)
	if err = s.hub.Admit(conn, profile); err != nil {
		conn.Close(err)
		_ = conn.Run(s.ctx)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		reason := conn.Run(s.ctx)
		s.hub.Disconnect(conn)
		s.log.Debug("Connection closed", "user_id", conn.UserID(), "conn_id", conn.ID(), "reason", reason)
	}()
}

// Wait blocks until every connection went through its cleanup, or ctx expires.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	if s.monitor == nil {
		writeJSON(w, http.StatusOK, s.hub.Stats())
		return
	}
	s.monitor.Refresh()
	writeJSON(w, http.StatusOK, s.monitor.GetLatest())
}

func (s *Server) statsMap() map[string]any {
	stats := s.hub.Stats()
	return map[string]any{
		"connections":  stats.Connections,
		"rooms":        stats.Rooms,
		"active_calls": stats.ActiveCalls,
	}
}

func (s *Server) users(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"users": s.hub.ConnectedUsers()})
}

type announceRequest struct {
	Content string `json:"content"`
}

// announce pushes a system message to every live member of a room. It is not persisted.
func (s *Server) announce(w http.ResponseWriter, r *http.Request) {
	var req announceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	roomID := domain.RoomID(chi.URLParam(r, "roomID"))
	delivered := s.hub.SendToRoom(roomID, event.NewChatMessage(domain.Message{
		ID:         uuid.New(),
		RoomID:     roomID,
		SenderID:   "system",
		SenderName: "system",
		Content:    req.Content,
		Kind:       domain.SystemMessage,
		CreatedAt:  time.Now().UTC(),
	}))
	writeJSON(w, http.StatusOK, map[string]int{"delivered": delivered})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
