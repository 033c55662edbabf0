package runtime

import (
	"circle-hub/contract"
	"circle-hub/domain"
	"circle-hub/domain/event"
	"circle-hub/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// EmergencyBroadcaster raises alerts to every room of the sender and pushes them
// to the devices of every circle member, connected or not.
type EmergencyBroadcaster struct {
	mu          sync.Mutex
	log         *slog.Logger
	registry    *Registry
	directory   contract.ProfileDirectory
	push        contract.PushNotifier
	store       contract.AlertStore
	alerts      map[uuid.UUID]*domain.EmergencyAlert
	pushTimeout time.Duration
}

func NewEmergencyBroadcaster(log *slog.Logger, registry *Registry, directory contract.ProfileDirectory,
	push contract.PushNotifier, store contract.AlertStore, pushTimeout time.Duration) *EmergencyBroadcaster {
	return &EmergencyBroadcaster{
		log:         log,
		registry:    registry,
		directory:   directory,
		push:        push,
		store:       store,
		alerts:      make(map[uuid.UUID]*domain.EmergencyAlert),
		pushTimeout: pushTimeout,
	}
}

// AlertRequest is what a sender submits when raising an alert.
type AlertRequest struct {
	Kind     domain.AlertKind
	Message  string
	Location *domain.GeoPoint
}

// Raise broadcasts the alert to every live member of every room of the sender,
// the sender included so it learns the alert id, then pushes it to the other
// circle members. Push failures are logged, never returned.
func (e *EmergencyBroadcaster) Raise(ctx context.Context, sender domain.Profile, senderName string,
	req AlertRequest) (domain.EmergencyAlert, Delivery) {
	if senderName == "" {
		senderName = sender.Name()
	}
	rooms := e.registry.RoomsOf(sender.UserID)
	alert := &domain.EmergencyAlert{
		ID:         uuid.New(),
		SenderID:   sender.UserID,
		SenderName: senderName,
		Kind:       req.Kind,
		Message:    req.Message,
		Location:   req.Location,
		Rooms:      rooms,
		CreatedAt:  time.Now().UTC(),
	}

	e.mu.Lock()
	e.alerts[alert.ID] = alert
	snapshot := *alert
	e.mu.Unlock()

	delivery := e.registry.BroadcastRooms(rooms, event.NewEmergencyAlert(snapshot))
	e.log.Warn("Emergency alert raised",
		"alert_id", alert.ID, "user_id", sender.UserID, "kind", alert.Kind,
		"rooms", len(rooms), "recipients", delivery.Delivered)

	e.save(ctx, snapshot)
	e.notify(ctx, sender, snapshot)
	return snapshot, delivery
}

// Resolve marks the alert resolved and tells the rooms it was raised in.
// Resolving an already resolved alert is a no-op that reports false.
func (e *EmergencyBroadcaster) Resolve(ctx context.Context, alertID uuid.UUID, resolverID string) (domain.EmergencyAlert, bool, error) {
	e.mu.Lock()
	alert, ok := e.alerts[alertID]
	if !ok {
		e.mu.Unlock()
		return domain.EmergencyAlert{}, false, fmt.Errorf("%w: %s", errors.ErrAlertNotFound, alertID)
	}
	if resolverID != alert.SenderID && !lo.SomeBy(alert.Rooms, func(r domain.RoomID) bool {
		return e.registry.IsMember(resolverID, r)
	}) {
		e.mu.Unlock()
		return domain.EmergencyAlert{}, false, fmt.Errorf("%w: alert %s", errors.ErrNotAMember, alertID)
	}
	changed := alert.Resolve(resolverID, time.Now().UTC())
	snapshot := *alert
	snapshot.Responders = append([]string(nil), alert.Responders...)
	e.mu.Unlock()

	if !changed {
		return snapshot, false, nil
	}
	delivery := e.registry.BroadcastRooms(snapshot.Rooms, event.NewEmergencyResolved(snapshot))
	e.log.Info("Emergency alert resolved",
		"alert_id", alertID, "user_id", resolverID, "recipients", delivery.Delivered)
	e.save(ctx, snapshot)
	return snapshot, true, nil
}

func (e *EmergencyBroadcaster) Get(alertID uuid.UUID) (domain.EmergencyAlert, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	alert, ok := e.alerts[alertID]
	if !ok {
		return domain.EmergencyAlert{}, false
	}
	return *alert, true
}

func (e *EmergencyBroadcaster) save(ctx context.Context, alert domain.EmergencyAlert) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveAlert(ctx, alert); err != nil {
		e.log.Error("Unable to save emergency alert", "alert_id", alert.ID, "error", err)
	}
}

// notify resolves the circles from both the profile and the circle rooms the
// sender is in, then pushes to every member but the sender.
func (e *EmergencyBroadcaster) notify(ctx context.Context, sender domain.Profile, alert domain.EmergencyAlert) {
	if e.push == nil || e.directory == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, e.pushTimeout)
	defer cancel()

	circleIDs := append([]string(nil), sender.CircleIDs...)
	for _, room := range alert.Rooms {
		if circleID, ok := room.CircleID(); ok {
			circleIDs = append(circleIDs, circleID)
		}
	}
	circleIDs = lo.Uniq(circleIDs)
	if len(circleIDs) == 0 {
		return
	}

	members, err := e.directory.CircleMembers(ctx, circleIDs)
	if err != nil {
		e.log.Error("Unable to resolve circle members", "alert_id", alert.ID, "error", err)
		return
	}
	members = lo.Without(lo.Uniq(members), sender.UserID)
	if len(members) == 0 {
		return
	}
	tokens, err := e.directory.DeviceTokens(ctx, members)
	if err != nil {
		e.log.Error("Unable to resolve device tokens", "alert_id", alert.ID, "error", err)
		return
	}
	tokens = lo.Uniq(tokens)
	if len(tokens) == 0 {
		return
	}
	if err = e.push.Notify(ctx, tokens, alert); err != nil {
		e.log.Error("Emergency push failed", "alert_id", alert.ID, "tokens", len(tokens), "error", err)
		return
	}
	e.log.Info("Emergency notifications sent", "alert_id", alert.ID, "devices", len(tokens))
}
