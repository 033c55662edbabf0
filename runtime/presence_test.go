package runtime

import (
	"circle-hub/domain"
	"circle-hub/domain/event"
	"circle-hub/mocks"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestPresence_Announce_Mirrors_Store(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	stored := make(chan domain.Presence, 1)
	store := mocks.NewMockPresenceStore(ctrl)
	store.EXPECT().
		SetPresence(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, p domain.Presence) { stored <- p }).
		Return(nil)

	registry := NewRegistry()
	presence := NewPresenceBroadcaster(slog.Default(), registry, store, time.Second)
	a, b := newFakeConn("A"), newFakeConn("B")
	registry.Register(a)
	registry.Register(b)
	registry.Join("A", "r1")
	registry.Join("B", "r1")

	// When A leaves and its offline is announced
	registry.Deregister("A", a.ID())
	delivery, ok := presence.Announce("A", a.ID(), []domain.RoomID{"r1"}, false)

	req.True(ok)
	req.Equal(1, delivery.Delivered)
	req.Empty(a.Sent())
	changed := b.Named(event.PresenceChanged)
	req.Len(changed, 1)
	req.False(changed[0].Payload.(event.PresencePayload).Online)

	select {
	case p := <-stored:
		req.Equal("A", p.UserID)
		req.False(p.Online)
	case <-time.After(time.Second):
		req.Fail("presence was not mirrored")
	}
}

func TestPresence_Stale_Transitions_Are_Dropped(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	presence := NewPresenceBroadcaster(slog.Default(), registry, nil, time.Second)
	old, current, b := newFakeConn("A"), newFakeConn("A"), newFakeConn("B")
	registry.Register(b)
	registry.Join("B", "r1")
	registry.Register(old)
	registry.Register(current)
	registry.Join("A", "r1")

	// When the replaced connection of A announces itself offline
	_, ok := presence.Announce("A", old.ID(), []domain.RoomID{"r1"}, false)

	// Then nothing goes out, A still being connected
	req.False(ok)
	req.Empty(b.Named(event.PresenceChanged))

	// When the replaced connection announces itself online
	_, ok = presence.Announce("A", old.ID(), []domain.RoomID{"r1"}, true)

	// Then it is dropped too
	req.False(ok)
	req.Empty(b.Named(event.PresenceChanged))

	// And the live connection is announced
	delivery, ok := presence.Announce("A", current.ID(), []domain.RoomID{"r1"}, true)
	req.True(ok)
	req.Equal(1, delivery.Delivered)
	req.True(b.Named(event.PresenceChanged)[0].Payload.(event.PresencePayload).Online)
}
