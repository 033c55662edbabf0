package runtime

import (
	"circle-hub/domain"
	"circle-hub/domain/event"
	"circle-hub/errors"
	"circle-hub/mocks"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestRelay_Send_Persistence_Failure_Is_Private(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Given a store that always fails
	store := mocks.NewMockMessageStore(ctrl)
	store.EXPECT().
		Persist(gomock.Any(), gomock.Any()).
		Return(domain.Message{}, fmt.Errorf("disk full")).
		Times(1)
	f := newFixture(fixtureDeps{store: store})
	a := f.connect(t, "A", "family")
	b := f.connect(t, "B", "family")

	// When A sends a message
	f.send(a, event.ChatSend, map[string]any{"circleId": "family", "content": "hello"})

	// Then nothing is broadcast
	req.Empty(b.Named(event.ChatMessage))
	// And A gets exactly one chat:error and no acknowledgement
	errs := a.Named(event.ChatError)
	req.Len(errs, 1)
	req.Equal("persistence_failed", errs[0].Payload.(event.ErrorPayload).Code)
	req.Empty(a.Named(event.ChatMessageSent))
}

func TestRelay_Send_Not_A_Member_Persists_Nothing(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockMessageStore(ctrl)
	store.EXPECT().Persist(gomock.Any(), gomock.Any()).Times(0)
	registry := NewRegistry()
	relay := NewRelay(slog.Default(), registry, store, nil, nil, nil, time.Second)
	b := newFakeConn("B")
	registry.Register(b)
	registry.Join("B", "r1")

	_, err := relay.Send(context.Background(), domain.Draft{RoomID: "r1", SenderID: "A", Content: "hi"}, time.Now())

	req.ErrorIs(err, errors.ErrNotAMember)
	req.Empty(b.Sent())
}

func TestRelay_Send_Moderates_Content(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	moderator := mocks.NewMockModerator(ctrl)
	moderator.EXPECT().Censor("you badger").Return("you ******", []string{"badger"})
	moderator.EXPECT().DetectLanguage("you ******").Return("en")
	telemetry := mocks.NewMockTelemetrySink(ctrl)
	telemetry.EXPECT().Emit(gomock.Any()).Times(2) // one censorship hit, one relayed message

	store := &memoryStore{}
	registry := NewRegistry()
	relay := NewRelay(slog.Default(), registry, store, moderator, nil, telemetry, time.Second)
	b := newFakeConn("B")
	registry.Register(b)
	registry.Join("A", "r1")
	registry.Join("B", "r1")

	msg, err := relay.Send(context.Background(),
		domain.Draft{RoomID: "r1", SenderID: "A", Content: "you badger", Metadata: map[string]string{"k": "v"}}, time.Now())

	req.NoError(err)
	req.Equal("you ******", msg.Content)
	req.Equal([]string{"badger"}, msg.CensoredWords)
	req.Equal(map[string]string{"k": "v", "lang": "en"}, msg.Metadata)
	req.Equal("you ******", store.Stored()[0].Content)
	req.Equal("you ******", b.Named(event.ChatMessage)[0].Payload.(event.MessagePayload).Content)
}

func TestRelay_Typing_From_Non_Member_Is_Dropped(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	relay := NewRelay(slog.Default(), registry, &memoryStore{}, nil, nil, nil, time.Second)
	b := newFakeConn("B")
	registry.Register(b)
	registry.Join("B", "r1")

	delivery := relay.Typing("A", "r1", true)

	req.Zero(delivery.Delivered)
	req.Empty(b.Sent())
}

type recordingHistory struct {
	snapshots []domain.LocationSnapshot
}

func (h *recordingHistory) Record(s domain.LocationSnapshot) {
	h.snapshots = append(h.snapshots, s)
}

func TestRelay_ShareLocation_Once_Per_Connection(t *testing.T) {
	req := require.New(t)
	history := &recordingHistory{}
	registry := NewRegistry()
	relay := NewRelay(slog.Default(), registry, &memoryStore{}, nil, history, nil, time.Second)
	a, b := newFakeConn("A"), newFakeConn("B")
	registry.Register(a)
	registry.Register(b)
	for _, room := range []domain.RoomID{"r1", "r2"} {
		registry.Join("A", room)
		registry.Join("B", room)
	}

	snapshot := domain.LocationSnapshot{UserID: "A", Latitude: 48.85, Longitude: 2.35, At: time.Now()}
	delivery := relay.ShareLocation(snapshot)

	req.Equal(1, delivery.Delivered)
	req.Len(b.Named(event.LocationUpdate), 1)
	req.Empty(a.Sent())
	req.Equal([]domain.LocationSnapshot{snapshot}, history.snapshots)
}

func TestRelay_RequestLocation_Requires_Shared_Room(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	relay := NewRelay(slog.Default(), registry, &memoryStore{}, nil, nil, nil, time.Second)
	b, c := newFakeConn("B"), newFakeConn("C")
	registry.Register(b)
	registry.Register(c)
	registry.Join("A", "r1")
	registry.Join("B", "r1")
	registry.Join("C", "r2")

	req.NoError(relay.RequestLocation("A", "B"))
	req.Len(b.Named(event.LocationRequest), 1)

	req.ErrorIs(relay.RequestLocation("A", "C"), errors.ErrNotAMember)
	req.Empty(c.Sent())
}
