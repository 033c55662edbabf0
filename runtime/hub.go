// Package runtime holds the live state of the hub: who is connected, which rooms
// they are in, the calls in progress and the alerts raised. It contains no
// transport code; connections are reached only through contract.Connection.
package runtime

import (
	"circle-hub/contract"
	"circle-hub/domain"
	"circle-hub/domain/event"
	hubErrors "circle-hub/errors"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Hub admits connections, dispatches their inbound events and tears them down.
type Hub struct {
	log       *slog.Logger
	registry  *Registry
	presence  *PresenceBroadcaster
	relay     *Relay
	calls     *CallManager
	emergency *EmergencyBroadcaster
	telemetry contract.TelemetrySink

	mu       sync.RWMutex
	profiles map[uuid.UUID]domain.Profile // map connection -> profile
	closing  atomic.Bool
}

func NewHub(log *slog.Logger, registry *Registry, presence *PresenceBroadcaster, relay *Relay,
	calls *CallManager, emergency *EmergencyBroadcaster, telemetry contract.TelemetrySink) *Hub {
	return &Hub{
		log:       log,
		registry:  registry,
		presence:  presence,
		relay:     relay,
		calls:     calls,
		emergency: emergency,
		telemetry: telemetry,
		profiles:  make(map[uuid.UUID]domain.Profile),
	}
}

// Admit registers an authenticated connection, joins its circle rooms and
// announces it online. A previous connection of the same user is torn down first,
// without an offline announcement since the user never went away.
func (h *Hub) Admit(conn contract.Connection, profile domain.Profile) error {
	if h.closing.Load() {
		return hubErrors.ErrHubShuttingDown
	}
	userID := conn.UserID()

	h.mu.Lock()
	h.profiles[conn.ID()] = profile
	h.mu.Unlock()

	previous, previousRooms := h.registry.Register(conn)
	if previous != nil {
		h.log.Info("Connection superseded",
			"user_id", userID, "conn_id", previous.ID(), "rooms", len(previousRooms))
		h.calls.EndUserCalls(userID)
		h.forget(previous.ID())
		previous.Close(hubErrors.ErrSuperseded)
	}

	rooms := profile.Rooms()
	for _, roomID := range rooms {
		h.registry.Join(userID, roomID)
	}
	h.presence.Announce(userID, conn.ID(), rooms, true)
	h.log.Info("User connected", "user_id", userID, "conn_id", conn.ID(), "rooms", len(rooms))
	return nil
}

// Disconnect runs the full cleanup of a connection. It is a no-op for a connection
// that was already superseded.
func (h *Hub) Disconnect(conn contract.Connection) {
	defer h.forget(conn.ID())

	userID := conn.UserID()
	rooms, ok := h.registry.Deregister(userID, conn.ID())
	if !ok {
		return
	}
	ended := h.calls.EndUserCalls(userID)
	// Dropped when the user reconnected while its calls were ending
	h.presence.Announce(userID, conn.ID(), rooms, false)
	h.log.Info("User disconnected",
		"user_id", userID, "conn_id", conn.ID(), "rooms", len(rooms), "calls_ended", len(ended))
}

// Dispatch decodes and handles one inbound frame. Failures are reported to the
// originating connection only, and a panic never escapes a single event.
// Frames of a connection that is no longer the live one of its user are dropped,
// a superseded connection must not act on behalf of its replacement.
func (h *Hub) Dispatch(ctx context.Context, conn contract.Connection, frame []byte, receivedAt time.Time) {
	if !h.registry.IsCurrent(conn.UserID(), conn.ID()) {
		h.log.Debug("Frame of a detached connection dropped", "user_id", conn.UserID(), "conn_id", conn.ID())
		return
	}
	name, in, err := event.Decode(frame)
	if err != nil {
		h.replyError(conn, event.Error, name, err)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Panic while handling event",
				"user_id", conn.UserID(), "event", name, "panic", fmt.Sprint(r))
			h.replyError(conn, event.Error, name, fmt.Errorf("panic: %v", r))
		}
	}()

	if err = h.handle(ctx, conn, in, receivedAt); err != nil {
		h.replyError(conn, event.Error, name, err)
	}
}

func (h *Hub) handle(ctx context.Context, conn contract.Connection, in event.Inbound, receivedAt time.Time) error {
	userID := conn.UserID()

	switch evt := in.(type) {
	case event.SendChat:
		h.sendChat(ctx, conn, evt, receivedAt)
		return nil

	case event.TypingSignal:
		h.relay.Typing(userID, evt.Room(), evt.IsTyping)
		return nil

	case event.LocationReport:
		h.relay.ShareLocation(domain.LocationSnapshot{
			UserID:       userID,
			Latitude:     evt.Latitude,
			Longitude:    evt.Longitude,
			Accuracy:     evt.Accuracy,
			Address:      evt.Address,
			PlaceLabel:   evt.PlaceLabel,
			BatteryLevel: evt.BatteryLevel,
			At:           receivedAt.UTC(),
		})
		return nil

	case event.LocationAsk:
		return h.relay.RequestLocation(userID, evt.UserID)

	case event.StartCall:
		call, err := h.calls.Initiate(userID, evt.Participants, domain.CallKind(evt.Kind), domain.RoomID(evt.RoomID))
		switch {
		case errors.Is(err, hubErrors.ErrEmptyParticipantSet):
			conn.Send(event.NewCallInitiated(call, err.Error()))
			return nil
		case err != nil:
			return err
		}
		conn.Send(event.NewCallInitiated(call, ""))
		return nil

	case event.AnswerCall:
		return h.callTransition(evt.CallID, userID, h.calls.Answer)

	case event.RejectCall:
		return h.callTransition(evt.CallID, userID, h.calls.Reject)

	case event.EndCall:
		return h.callTransition(evt.CallID, userID, h.calls.End)

	case event.RaiseAlert:
		req := AlertRequest{Kind: domain.AlertKind(evt.Kind), Message: evt.Message}
		if evt.Location != nil {
			req.Location = &domain.GeoPoint{
				Latitude:  evt.Location.Latitude,
				Longitude: evt.Location.Longitude,
				Address:   evt.Location.Address,
			}
		}
		h.emergency.Raise(ctx, h.profileOf(conn), evt.SenderName, req)
		return nil

	case event.ResolveAlert:
		alertID, err := uuid.Parse(evt.AlertID)
		if err != nil {
			return fmt.Errorf("%w: %v", hubErrors.ErrInvalidPayload, err)
		}
		_, _, err = h.emergency.Resolve(ctx, alertID, userID)
		return err

	case event.JoinRoom:
		if h.registry.Join(userID, evt.Room()) {
			h.log.Info("User joined room", "user_id", userID, "room_id", evt.Room())
		}
		return nil

	case event.LeaveRoom:
		if h.registry.Leave(userID, evt.Room()) {
			h.log.Info("User left room", "user_id", userID, "room_id", evt.Room())
		}
		return nil

	case event.Heartbeat:
		conn.Send(event.NewPong(time.Now()))
		return nil

	default:
		return fmt.Errorf("%w: %T", hubErrors.ErrUnknownEvent, in)
	}
}

// sendChat acknowledges the sender on its own connection: chat:message_sent on
// success, a single chat:error otherwise.
func (h *Hub) sendChat(ctx context.Context, conn contract.Connection, evt event.SendChat, receivedAt time.Time) {
	senderName := evt.SenderName
	if senderName == "" {
		senderName = h.profileOf(conn).Name()
	}
	msg, err := h.relay.Send(ctx, domain.Draft{
		RoomID:     evt.Room(),
		SenderID:   conn.UserID(),
		SenderName: senderName,
		Content:    evt.Content,
		Kind:       domain.MessageKind(evt.Kind),
		Metadata:   evt.Metadata,
	}, receivedAt)
	if err != nil {
		h.replyError(conn, event.ChatError, evt.Name(), err)
		return
	}
	conn.Send(event.NewMessageSent(msg))
}

type callTransitionFunc func(callID uuid.UUID, by string) (domain.CallSession, bool, error)

func (h *Hub) callTransition(rawID, userID string, apply callTransitionFunc) error {
	callID, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("%w: %v", hubErrors.ErrInvalidPayload, err)
	}
	_, _, err = apply(callID, userID)
	return err
}

func (h *Hub) replyError(conn contract.Connection, name, source event.Name, err error) {
	code, message := ToClientError(err)
	h.log.Debug("Event rejected", "user_id", conn.UserID(), "event", source, "code", code, "error", err)
	conn.Send(event.NewError(name, source, code, message))
}

// ToClientError maps an error to the code and message a client is allowed to see.
func ToClientError(err error) (string, string) {
	switch {
	case errors.Is(err, hubErrors.ErrNotAMember):
		return "not_a_member", "you are not a member of this room"
	case errors.Is(err, hubErrors.ErrPersistenceFailed):
		return "persistence_failed", "failed to send message"
	case errors.Is(err, hubErrors.ErrCallNotFound):
		return "call_not_found", "call not found"
	case errors.Is(err, hubErrors.ErrNotAParticipant):
		return "not_a_participant", "you are not a participant of this call"
	case errors.Is(err, hubErrors.ErrAlertNotFound):
		return "alert_not_found", "emergency alert not found"
	case errors.Is(err, hubErrors.ErrUnknownEvent):
		return "unknown_event", err.Error()
	case errors.Is(err, hubErrors.ErrInvalidPayload):
		return "invalid_payload", err.Error()
	default:
		return "internal_error", "internal error"
	}
}

// SlowConsumer is called by a connection that dropped itself on a full queue.
func (h *Hub) SlowConsumer(conn contract.Connection, capacity int) {
	if h.telemetry == nil {
		return
	}
	h.telemetry.Emit(event.NewEvent(event.SlowConsumerType, event.SlowConsumer{
		UserID:   conn.UserID(),
		ConnID:   conn.ID().String(),
		Capacity: capacity,
	}))
}

// ConnectedUsers lists the users with a live connection.
func (h *Hub) ConnectedUsers() []string {
	return h.registry.ConnectedUsers()
}

// SendToUser pushes a server-originated event to one user.
func (h *Hub) SendToUser(userID string, out event.Outbound) bool {
	return h.registry.SendTo(userID, out).Delivered > 0
}

// SendToRoom pushes a server-originated event to every live member of a room.
func (h *Hub) SendToRoom(roomID domain.RoomID, out event.Outbound) int {
	return h.registry.Broadcast(roomID, out).Delivered
}

type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
	ActiveCalls int `json:"active_calls"`
}

func (h *Hub) Stats() Stats {
	connections, rooms := h.registry.Stats()
	return Stats{Connections: connections, Rooms: rooms, ActiveCalls: h.calls.Active()}
}

// Shutdown refuses new connections and closes the live ones. Their cleanup runs
// through Disconnect once their transport loop exits.
func (h *Hub) Shutdown(reason error) {
	h.closing.Store(true)
	for _, conn := range h.registry.Connections() {
		conn.Close(reason)
	}
}

func (h *Hub) profileOf(conn contract.Connection) domain.Profile {
	h.mu.RLock()
	defer h.mu.RUnlock()
	profile, ok := h.profiles[conn.ID()]
	if !ok {
		return domain.Profile{UserID: conn.UserID()}
	}
	return profile
}

func (h *Hub) forget(connID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.profiles, connID)
}
