package runtime

import (
	"circle-hub/contract"
	"circle-hub/domain"
	"circle-hub/domain/event"
	"circle-hub/errors"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"
)

// Relay moves chat messages and ephemeral signals between the members of a room.
type Relay struct {
	log            *slog.Logger
	registry       *Registry
	store          contract.MessageStore
	moderator      contract.Moderator
	history        contract.LocationHistoryWriter
	telemetry      contract.TelemetrySink
	persistTimeout time.Duration
}

func NewRelay(log *slog.Logger, registry *Registry, store contract.MessageStore,
	moderator contract.Moderator, history contract.LocationHistoryWriter,
	telemetry contract.TelemetrySink, persistTimeout time.Duration) *Relay {
	return &Relay{
		log:            log,
		registry:       registry,
		store:          store,
		moderator:      moderator,
		history:        history,
		telemetry:      telemetry,
		persistTimeout: persistTimeout,
	}
}

// Send persists a chat message then fans it out to the other live members of the room.
// Nothing is persisted nor broadcast when the sender is not a member, and nothing is
// broadcast when persistence fails. Acknowledging the sender is up to the caller.
func (r *Relay) Send(ctx context.Context, draft domain.Draft, receivedAt time.Time) (domain.Message, error) {
	if !r.registry.IsMember(draft.SenderID, draft.RoomID) {
		return domain.Message{}, fmt.Errorf("%w: %s", errors.ErrNotAMember, draft.RoomID)
	}

	msg := r.moderate(draft.ToMessage())

	persistCtx, cancel := context.WithTimeout(ctx, r.persistTimeout)
	defer cancel()
	stored, err := r.store.Persist(persistCtx, msg)
	if err != nil {
		r.log.Error("Unable to persist message",
			"room_id", draft.RoomID, "user_id", draft.SenderID, "error", err)
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistenceFailed, err)
	}

	delivery := r.registry.Broadcast(stored.RoomID, event.NewChatMessage(stored), stored.SenderID)
	r.emit(event.NewEvent(event.MessageRelayedType, event.MessageRelayed{
		RoomID:     stored.RoomID,
		SenderID:   stored.SenderID,
		Recipients: delivery.Delivered,
		ReceivedAt: receivedAt,
	}))
	r.log.Debug("Message relayed",
		"room_id", stored.RoomID, "user_id", stored.SenderID,
		"message_id", stored.ID, "recipients", delivery.Delivered, "dropped", len(delivery.Dropped))
	return stored, nil
}

func (r *Relay) moderate(msg domain.Message) domain.Message {
	if r.moderator == nil || msg.Kind != domain.TextMessage {
		return msg
	}
	content, words := r.moderator.Censor(msg.Content)
	msg.Content = content
	msg.CensoredWords = words
	for _, word := range words {
		r.emit(event.NewEvent(event.CensorshipHitType, event.Censored{RoomID: msg.RoomID, Word: word}))
	}
	if lang := r.moderator.DetectLanguage(content); lang != "" {
		metadata := maps.Clone(msg.Metadata)
		if metadata == nil {
			metadata = make(map[string]string)
		}
		metadata["lang"] = lang
		msg.Metadata = metadata
	}
	return msg
}

// Typing forwards a typing indicator. A sender outside the room is silently ignored.
func (r *Relay) Typing(userID string, roomID domain.RoomID, isTyping bool) Delivery {
	if !r.registry.IsMember(userID, roomID) {
		return Delivery{}
	}
	return r.registry.Broadcast(roomID, event.NewTyping(userID, roomID, isTyping), userID)
}

// ShareLocation fans a snapshot out to every room of the user, once per connection,
// and hands it to the location history without waiting.
func (r *Relay) ShareLocation(snapshot domain.LocationSnapshot) Delivery {
	rooms := r.registry.RoomsOf(snapshot.UserID)
	delivery := r.registry.BroadcastRooms(rooms, event.NewLocationUpdate(snapshot), snapshot.UserID)
	if r.history != nil {
		r.history.Record(snapshot)
	}
	return delivery
}

// RequestLocation asks one user for a fresh position. Both users must share a room.
func (r *Relay) RequestLocation(requesterID, targetID string) error {
	if !r.registry.ShareRoom(requesterID, targetID) {
		return fmt.Errorf("%w: no room shared with %s", errors.ErrNotAMember, targetID)
	}
	r.registry.SendTo(targetID, event.NewLocationRequest(requesterID))
	return nil
}

func (r *Relay) emit(evt event.Event) {
	if r.telemetry != nil {
		r.telemetry.Emit(evt)
	}
}
