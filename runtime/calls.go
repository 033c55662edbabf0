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
)

// CallManager is the only owner of call sessions.
// Transitions and their notifications happen under the same lock so that every
// party observes them in the order they were applied.
type CallManager struct {
	mu             sync.Mutex
	log            *slog.Logger
	registry       *Registry
	history        contract.CallHistoryWriter
	calls          map[uuid.UUID]*domain.CallSession
	retention      time.Duration
	historyTimeout time.Duration
	now            func() time.Time
}

func NewCallManager(log *slog.Logger, registry *Registry, history contract.CallHistoryWriter,
	retention, historyTimeout time.Duration) *CallManager {
	return &CallManager{
		log:            log,
		registry:       registry,
		history:        history,
		calls:          make(map[uuid.UUID]*domain.CallSession),
		retention:      retention,
		historyTimeout: historyTimeout,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Initiate creates a ringing session and rings every live participant.
// The session exists even when nobody could be reached, in which case
// ErrEmptyParticipantSet is returned alongside it.
func (m *CallManager) Initiate(initiatorID string, participantIDs []string,
	kind domain.CallKind, mirrorRoom domain.RoomID) (domain.CallSession, error) {
	if mirrorRoom != "" && !m.registry.IsMember(initiatorID, mirrorRoom) {
		return domain.CallSession{}, fmt.Errorf("%w: %s", errors.ErrNotAMember, mirrorRoom)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	call := domain.NewCallSession(uuid.New(), initiatorID, participantIDs, kind, mirrorRoom, m.now())
	m.calls[call.ID] = call
	snapshot := call.Snapshot()

	delivery := m.registry.SendToUsers(call.ParticipantIDs, event.NewCall(event.CallIncoming, snapshot, initiatorID))
	m.mirror(snapshot, event.CallIncoming, initiatorID)
	m.log.Info("Call initiated",
		"call_id", call.ID, "user_id", initiatorID,
		"participants", len(call.ParticipantIDs), "reached", delivery.Delivered)

	if delivery.Delivered == 0 {
		return snapshot, errors.ErrEmptyParticipantSet
	}
	return snapshot, nil
}

// Answer connects a ringing call. Answering anything else is a no-op that reports false.
func (m *CallManager) Answer(callID uuid.UUID, by string) (domain.CallSession, bool, error) {
	return m.transition(callID, by, true, event.CallAnswered, func(c *domain.CallSession, now time.Time) bool {
		return c.Answer(now)
	})
}

// Reject turns a ringing call into a missed one.
func (m *CallManager) Reject(callID uuid.UUID, by string) (domain.CallSession, bool, error) {
	return m.transition(callID, by, true, event.CallRejected, func(c *domain.CallSession, now time.Time) bool {
		return c.Reject(by, now)
	})
}

// End terminates a ringing or connected call. Any party may end it.
func (m *CallManager) End(callID uuid.UUID, by string) (domain.CallSession, bool, error) {
	return m.transition(callID, by, false, event.CallEnded, func(c *domain.CallSession, now time.Time) bool {
		return c.End(by, now)
	})
}

func (m *CallManager) transition(callID uuid.UUID, by string, participantOnly bool, name event.Name,
	apply func(c *domain.CallSession, now time.Time) bool) (domain.CallSession, bool, error) {
	snapshot, changed, err := m.applyTransition(callID, by, participantOnly, name, apply)
	if err != nil {
		return domain.CallSession{}, false, err
	}
	if changed {
		m.log.Info("Call transition", "call_id", callID, "user_id", by, "status", snapshot.Status)
		m.record(snapshot)
	}
	return snapshot, changed, nil
}

func (m *CallManager) applyTransition(callID uuid.UUID, by string, participantOnly bool, name event.Name,
	apply func(c *domain.CallSession, now time.Time) bool) (domain.CallSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call, ok := m.calls[callID]
	if !ok {
		return domain.CallSession{}, false, fmt.Errorf("%w: %s", errors.ErrCallNotFound, callID)
	}
	allowed := call.IsParty(by)
	if participantOnly {
		allowed = call.IsParticipant(by)
	}
	if !allowed {
		return domain.CallSession{}, false, fmt.Errorf("%w: %s", errors.ErrNotAParticipant, callID)
	}
	changed := apply(call, m.now())
	snapshot := call.Snapshot()
	if changed {
		m.notify(snapshot, name, by)
	}
	return snapshot, changed, nil
}

// EndUserCalls runs when a user disconnects: every connected call of the user ends,
// and the ringing calls the user initiated are cancelled. Calls ringing for the user
// are left alone so the initiator keeps control over them.
func (m *CallManager) EndUserCalls(userID string) []domain.CallSession {
	ended := m.endUserCalls(userID)
	for _, call := range ended {
		m.log.Info("Call ended on disconnect", "call_id", call.ID, "user_id", userID)
		m.record(call)
	}
	return ended
}

func (m *CallManager) endUserCalls(userID string) []domain.CallSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ended []domain.CallSession
	now := m.now()
	for _, call := range m.calls {
		if !call.IsParty(userID) {
			continue
		}
		connected := call.Status == domain.CallConnected
		cancelled := call.Status == domain.CallRinging && call.InitiatorID == userID
		if !connected && !cancelled {
			continue
		}
		if call.End(userID, now) {
			snapshot := call.Snapshot()
			m.notify(snapshot, event.CallEnded, userID)
			ended = append(ended, snapshot)
		}
	}
	return ended
}

// notify must be called with the lock held.
func (m *CallManager) notify(call domain.CallSession, name event.Name, by string) {
	m.registry.SendToUsers(call.Parties(), event.NewCall(name, call, by))
	m.mirror(call, name, by)
}

func (m *CallManager) mirror(call domain.CallSession, name event.Name, by string) {
	if call.MirrorRoom == "" {
		return
	}
	// Parties already got their own copy.
	m.registry.Broadcast(call.MirrorRoom, event.NewCall(name, call, by), call.Parties()...)
}

func (m *CallManager) record(call domain.CallSession) {
	if m.history == nil || !call.IsTerminal() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.historyTimeout)
	defer cancel()
	if err := m.history.SaveCall(ctx, call); err != nil {
		m.log.Warn("Unable to save call history", "call_id", call.ID, "error", err)
	}
}

func (m *CallManager) Get(callID uuid.UUID) (domain.CallSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call, ok := m.calls[callID]
	if !ok {
		return domain.CallSession{}, false
	}
	return call.Snapshot(), true
}

// Active counts the sessions that are not terminal yet.
func (m *CallManager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, call := range m.calls {
		if !call.IsTerminal() {
			n++
		}
	}
	return n
}

// Evict drops terminal sessions whose end is older than the retention window.
func (m *CallManager) Evict() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-m.retention)
	evicted := 0
	for id, call := range m.calls {
		if call.IsTerminal() && call.EndedAt != nil && call.EndedAt.Before(cutoff) {
			delete(m.calls, id)
			evicted++
		}
	}
	return evicted
}
