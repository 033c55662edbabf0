package runtime

import (
	"circle-hub/domain"
	"circle-hub/domain/event"
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// fakeConn records every frame queued for it.
type fakeConn struct {
	mu     sync.Mutex
	id     uuid.UUID
	userID string
	full   bool
	panics bool
	sent   []event.Outbound
	closed error
}

func newFakeConn(userID string) *fakeConn {
	return &fakeConn{id: uuid.New(), userID: userID}
}

func (c *fakeConn) ID() uuid.UUID  { return c.id }
func (c *fakeConn) UserID() string { return c.userID }

func (c *fakeConn) Send(out event.Outbound) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.panics {
		panic("connection send failed")
	}
	if c.full || c.closed != nil {
		return false
	}
	c.sent = append(c.sent, out)
	return true
}

func (c *fakeConn) Close(reason error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed == nil {
		c.closed = reason
	}
}

func (c *fakeConn) Sent() []event.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Outbound(nil), c.sent...)
}

// Named returns the frames of the given event name, in order.
func (c *fakeConn) Named(name event.Name) []event.Outbound {
	return lo.Filter(c.Sent(), func(out event.Outbound, _ int) bool {
		return out.Event == name
	})
}

func (c *fakeConn) Names() []event.Name {
	return lo.Map(c.Sent(), func(out event.Outbound, _ int) event.Name {
		return out.Event
	})
}

func (c *fakeConn) ClosedWith() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// recordingPresenceStore keeps every presence written, in write order.
type recordingPresenceStore struct {
	mu     sync.Mutex
	writes []domain.Presence
}

func (s *recordingPresenceStore) SetPresence(_ context.Context, presence domain.Presence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, presence)
	return nil
}

func (s *recordingPresenceStore) Of(userID string) []domain.Presence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Filter(s.writes, func(p domain.Presence, _ int) bool { return p.UserID == userID })
}

func (s *recordingPresenceStore) Last(userID string) (domain.Presence, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.writes) - 1; i >= 0; i-- {
		if s.writes[i].UserID == userID {
			return s.writes[i], true
		}
	}
	return domain.Presence{}, false
}
