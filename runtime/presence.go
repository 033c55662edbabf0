package runtime

import (
	"circle-hub/contract"
	"circle-hub/domain"
	"circle-hub/domain/event"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PresenceBroadcaster announces online/offline transitions to the rooms of a user
// and mirrors them into the presence store. Both are best-effort.
type PresenceBroadcaster struct {
	log          *slog.Logger
	registry     *Registry
	store        contract.PresenceStore
	storeTimeout time.Duration
	// serializes store writes, see mirror
	mirrorMu sync.Mutex
}

func NewPresenceBroadcaster(log *slog.Logger, registry *Registry,
	store contract.PresenceStore, storeTimeout time.Duration) *PresenceBroadcaster {
	return &PresenceBroadcaster{log: log, registry: registry, store: store, storeTimeout: storeTimeout}
}

// Announce sends presence-changed once to every other live member of the given rooms.
// Callers pass the rooms after joining them for online, and the rooms just left for offline.
// A transition that no longer holds is dropped: the online of a connection already
// replaced, or the offline of a user that reconnected in the meantime.
func (p *PresenceBroadcaster) Announce(userID string, connID uuid.UUID, rooms []domain.RoomID, online bool) (Delivery, bool) {
	now := time.Now().UTC()
	delivery, announced := p.registry.BroadcastPresence(userID, connID, online, rooms,
		event.NewPresence(userID, "", online, now))
	if !announced {
		p.log.Debug("Stale presence dropped", "user_id", userID, "conn_id", connID, "online", online)
		return delivery, false
	}
	p.log.Debug("Presence announced",
		"user_id", userID, "online", online, "rooms", len(rooms), "recipients", delivery.Delivered)

	if p.store != nil {
		go p.mirror(userID)
	}
	return delivery, true
}

// mirror writes the state the registry holds when the write happens rather than the
// announced one. Writes are serialized, so the last one always reflects the last
// transition whatever order the goroutines were scheduled in.
func (p *PresenceBroadcaster) mirror(userID string) {
	p.mirrorMu.Lock()
	defer p.mirrorMu.Unlock()

	presence := domain.Presence{
		UserID:   userID,
		Online:   p.registry.IsConnected(userID),
		LastSeen: time.Now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.storeTimeout)
	defer cancel()
	if err := p.store.SetPresence(ctx, presence); err != nil {
		p.log.Warn("Unable to store presence", "user_id", userID, "error", err)
	}
}
