package runtime

import (
	"circle-hub/contract"
	"circle-hub/domain"
	"circle-hub/domain/event"
	"circle-hub/errors"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// memoryStore assigns ids and timestamps like the real message store.
type memoryStore struct {
	mu       sync.Mutex
	messages []domain.Message
}

func (s *memoryStore) Persist(_ context.Context, msg domain.Message) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now().UTC()
	s.messages = append(s.messages, msg)
	return msg, nil
}

func (s *memoryStore) Stored() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages...)
}

type fixture struct {
	hub       *Hub
	registry  *Registry
	calls     *CallManager
	emergency *EmergencyBroadcaster
}

type fixtureDeps struct {
	store     contract.MessageStore
	directory contract.ProfileDirectory
	push      contract.PushNotifier
	moderator contract.Moderator
	presence  contract.PresenceStore
}

func newFixture(deps fixtureDeps) fixture {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	if deps.store == nil {
		deps.store = &memoryStore{}
	}
	registry := NewRegistry()
	presence := NewPresenceBroadcaster(log, registry, deps.presence, time.Second)
	relay := NewRelay(log, registry, deps.store, deps.moderator, nil, nil, time.Second)
	calls := NewCallManager(log, registry, nil, time.Minute, time.Second)
	emergency := NewEmergencyBroadcaster(log, registry, deps.directory, deps.push, nil, time.Second)
	return fixture{
		hub:       NewHub(log, registry, presence, relay, calls, emergency, nil),
		registry:  registry,
		calls:     calls,
		emergency: emergency,
	}
}

func (f fixture) connect(t *testing.T, userID string, circleIDs ...string) *fakeConn {
	conn := newFakeConn(userID)
	require.NoError(t, f.hub.Admit(conn, domain.Profile{UserID: userID, DisplayName: userID + " name", CircleIDs: circleIDs}))
	return conn
}

func (f fixture) send(conn *fakeConn, name event.Name, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	frame, _ := json.Marshal(event.Envelope{Event: name, Payload: raw})
	f.hub.Dispatch(context.Background(), conn, frame, time.Now())
}

func presenceOf(out event.Outbound) event.PresencePayload {
	return out.Payload.(event.PresencePayload)
}

func TestHub_Chat_Then_Offline_Presence(t *testing.T) {
	req := require.New(t)
	f := newFixture(fixtureDeps{})

	// Given A, B and C connected in the same circle
	a := f.connect(t, "A", "family")
	b := f.connect(t, "B", "family")
	c := f.connect(t, "C", "family")

	// When A sends hello
	f.send(a, event.ChatSend, map[string]any{"circleId": "family", "content": "hello"})

	// Then B and C receive it exactly once
	for _, conn := range []*fakeConn{b, c} {
		messages := conn.Named(event.ChatMessage)
		req.Len(messages, 1)
		payload := messages[0].Payload.(event.MessagePayload)
		req.Equal("hello", payload.Content)
		req.Equal("A", payload.SenderID)
		req.Equal("A name", payload.SenderName)
		req.Equal("family", payload.CircleID)
	}
	// And A only gets its acknowledgement
	req.Empty(a.Named(event.ChatMessage))
	sent := a.Named(event.ChatMessageSent)
	req.Len(sent, 1)
	req.NotEmpty(sent[0].Payload.(event.MessageSentPayload).ID)

	// When C disconnects
	f.hub.Disconnect(c)

	// Then A and B see C going offline
	for _, conn := range []*fakeConn{a, b} {
		offline := conn.Named(event.PresenceChanged)
		last := presenceOf(offline[len(offline)-1])
		req.Equal("C", last.UserID)
		req.False(last.Online)
	}
	req.Equal([]string{"A", "B"}, f.registry.MembersOf(domain.CircleRoom("family")))
}

func TestHub_Online_Presence_Once_Per_Connection(t *testing.T) {
	req := require.New(t)
	f := newFixture(fixtureDeps{})

	// Given B shares two circles with A
	b := f.connect(t, "B", "family", "friends")

	// When A connects
	f.connect(t, "A", "family", "friends")

	// Then B sees A online exactly once
	online := b.Named(event.PresenceChanged)
	req.Len(online, 1)
	req.Equal("A", presenceOf(online[0]).UserID)
	req.True(presenceOf(online[0]).Online)
}

func TestHub_Call_Answered_Scenario(t *testing.T) {
	req := require.New(t)
	f := newFixture(fixtureDeps{})

	// Given A and B are live, C is offline
	a := f.connect(t, "A", "family")
	b := f.connect(t, "B", "family")

	// When A calls B and C
	f.send(a, event.CallInitiate, map[string]any{"participants": []string{"B", "C"}})

	// Then B rings and A gets the call id
	incoming := b.Named(event.CallIncoming)
	req.Len(incoming, 1)
	callID := incoming[0].Payload.(event.CallPayload).CallID
	initiated := a.Named(event.CallInitiated)
	req.Len(initiated, 1)
	req.Equal(callID, initiated[0].Payload.(event.CallPayload).CallID)
	req.Empty(initiated[0].Payload.(event.CallPayload).Warning)

	// When B answers
	f.send(b, event.CallAnswer, map[string]any{"callId": callID})

	// Then A learns the call is connected
	answered := a.Named(event.CallAnswered)
	req.Len(answered, 1)
	req.Equal(string(domain.CallConnected), answered[0].Payload.(event.CallPayload).Status)
	call, ok := f.calls.Get(uuid.MustParse(callID))
	req.True(ok)
	req.Equal(domain.CallConnected, call.Status)
}

func TestHub_Call_Without_Reachable_Participant_Warns(t *testing.T) {
	req := require.New(t)
	f := newFixture(fixtureDeps{})
	a := f.connect(t, "A", "family")

	// When A calls nobody reachable
	f.send(a, event.CallInitiate, map[string]any{"participants": []string{"ghost"}})

	// Then the session exists and A is warned
	initiated := a.Named(event.CallInitiated)
	req.Len(initiated, 1)
	payload := initiated[0].Payload.(event.CallPayload)
	req.Equal(errors.ErrEmptyParticipantSet.Error(), payload.Warning)
	call, ok := f.calls.Get(uuid.MustParse(payload.CallID))
	req.True(ok)
	req.Equal(domain.CallRinging, call.Status)
}

func TestHub_Disconnect_Ends_Connected_Calls(t *testing.T) {
	req := require.New(t)
	f := newFixture(fixtureDeps{})
	a := f.connect(t, "A", "family")
	b := f.connect(t, "B", "family")

	// Given a connected call between A and B
	call, err := f.calls.Initiate("A", []string{"B"}, domain.VideoCall, "")
	req.NoError(err)
	_, changed, err := f.calls.Answer(call.ID, "B")
	req.NoError(err)
	req.True(changed)

	// When B drops
	f.hub.Disconnect(b)

	// Then A is told the call ended
	ended := a.Named(event.CallEnded)
	req.Len(ended, 1)
	stored, _ := f.calls.Get(call.ID)
	req.Equal(domain.CallEnded, stored.Status)
	req.Equal("B", stored.EndedBy)
}

func TestHub_Supersession_Tears_Down_Previous_Connection(t *testing.T) {
	req := require.New(t)
	f := newFixture(fixtureDeps{})
	b := f.connect(t, "B", "family")
	first := f.connect(t, "A", "family")

	// When A connects a second time
	second := f.connect(t, "A", "family")

	// Then the first connection is closed and replaced
	req.ErrorIs(first.ClosedWith(), errors.ErrSuperseded)
	found, _ := f.registry.Lookup("A")
	req.Equal(second, found)
	req.Equal([]string{"A", "B"}, f.registry.MembersOf(domain.CircleRoom("family")))

	// And B never saw A going offline
	for _, out := range b.Named(event.PresenceChanged) {
		req.True(presenceOf(out).Online)
	}

	// When the first connection finally reports its disconnect
	f.hub.Disconnect(first)

	// Then nothing changes for the live one
	found, ok := f.registry.Lookup("A")
	req.True(ok)
	req.Equal(second, found)
	f.send(b, event.ChatSend, map[string]any{"circleId": "family", "content": "still there?"})
	req.Len(second.Named(event.ChatMessage), 1)
	req.Empty(first.Named(event.ChatMessage))
}

func TestHub_Errors_Stay_Private(t *testing.T) {
	req := require.New(t)
	f := newFixture(fixtureDeps{})
	a := f.connect(t, "A", "family")
	b := f.connect(t, "B", "family")

	tests := []struct {
		name  string
		event event.Name
		body  any
		reply event.Name
		code  string
	}{
		{"not a member", event.ChatSend, map[string]any{"roomId": "elsewhere", "content": "x"}, event.ChatError, "not_a_member"},
		{"unknown call", event.CallEnd, map[string]any{"callId": uuid.NewString()}, event.Error, "call_not_found"},
		{"unknown alert", event.EmergencyResolve, map[string]any{"alertId": uuid.NewString()}, event.Error, "alert_not_found"},
		{"unknown event", "chat:delete", map[string]any{}, event.Error, "unknown_event"},
		{"invalid payload", event.ChatSend, map[string]any{"roomId": "r"}, event.Error, "invalid_payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(a.Sent())
			beforeB := len(b.Sent())

			f.send(a, tt.event, tt.body)

			sent := a.Sent()
			req.Len(sent, before+1)
			reply := sent[len(sent)-1]
			req.Equal(tt.reply, reply.Event)
			req.Equal(tt.code, reply.Payload.(event.ErrorPayload).Code)
			req.Len(b.Sent(), beforeB)
		})
	}
}

func TestHub_Ping_Pong(t *testing.T) {
	req := require.New(t)
	f := newFixture(fixtureDeps{})
	a := f.connect(t, "A")

	f.send(a, event.Ping, nil)

	req.Equal([]event.Name{event.Pong}, a.Names())
}

func TestHub_Join_And_Leave_Rooms(t *testing.T) {
	req := require.New(t)
	f := newFixture(fixtureDeps{})
	a := f.connect(t, "A")
	b := f.connect(t, "B")

	f.send(a, event.RoomJoin, map[string]any{"roomId": "hiking"})
	f.send(b, event.RoomJoin, map[string]any{"roomId": "hiking"})
	f.send(a, event.ChatTyping, map[string]any{"roomId": "hiking", "isTyping": true})
	req.Len(b.Named(event.ChatTyping), 1)

	f.send(b, event.RoomLeave, map[string]any{"roomId": "hiking"})
	f.send(a, event.ChatTyping, map[string]any{"roomId": "hiking", "isTyping": false})
	req.Len(b.Named(event.ChatTyping), 1)
	req.Equal([]string{"A"}, f.registry.MembersOf("hiking"))
}

func TestHub_Per_Sender_Order_Is_Preserved(t *testing.T) {
	req := require.New(t)
	f := newFixture(fixtureDeps{})
	a := f.connect(t, "A", "family")
	b := f.connect(t, "B", "family")

	for i := 0; i < 50; i++ {
		f.send(a, event.ChatSend, map[string]any{"circleId": "family", "content": fmt.Sprintf("m%d", i)})
	}

	messages := b.Named(event.ChatMessage)
	req.Len(messages, 50)
	for i, out := range messages {
		req.Equal(fmt.Sprintf("m%d", i), out.Payload.(event.MessagePayload).Content)
	}
}

func TestHub_Shutdown_Closes_Connections(t *testing.T) {
	req := require.New(t)
	f := newFixture(fixtureDeps{})
	a := f.connect(t, "A")

	f.hub.Shutdown(errors.ErrHubShuttingDown)

	req.ErrorIs(a.ClosedWith(), errors.ErrHubShuttingDown)
	req.ErrorIs(f.hub.Admit(newFakeConn("B"), domain.Profile{UserID: "B"}), errors.ErrHubShuttingDown)
}

func TestHub_Quick_Reconnect_Is_Not_Announced_Offline(t *testing.T) {
	req := require.New(t)
	presenceStore := &recordingPresenceStore{}
	f := newFixture(fixtureDeps{presence: presenceStore})
	b := f.connect(t, "B", "family")
	first := f.connect(t, "A", "family")

	// Given the disconnect of A stuck after its deregistration, while its calls end
	f.calls.mu.Lock()
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		f.hub.Disconnect(first)
	}()
	req.Eventually(func() bool { return !f.registry.IsConnected("A") }, time.Second, time.Millisecond)

	// When A reconnects before the disconnect completes
	second := f.connect(t, "A", "family")
	f.calls.mu.Unlock()
	<-disconnected

	// Then the last presence B got for A says online
	var last *event.PresencePayload
	for _, out := range b.Named(event.PresenceChanged) {
		if p := presenceOf(out); p.UserID == "A" {
			last = &p
		}
	}
	req.NotNil(last)
	req.True(last.Online)
	found, ok := f.registry.Lookup("A")
	req.True(ok)
	req.Equal(second, found)

	// And the store ends up with A online, the dropped offline never being written
	req.Eventually(func() bool { return len(presenceStore.Of("A")) == 2 }, time.Second, 5*time.Millisecond)
	stored, ok := presenceStore.Last("A")
	req.True(ok)
	req.True(stored.Online)
}

func TestHub_Superseded_Connection_Cannot_Act(t *testing.T) {
	req := require.New(t)
	f := newFixture(fixtureDeps{})
	b := f.connect(t, "B", "family")
	first := f.connect(t, "A", "family")
	second := f.connect(t, "A", "family")

	// When the replaced connection still sends frames before its pumps stop
	f.send(first, event.RoomJoin, map[string]any{"roomId": "secret"})
	f.send(first, event.ChatSend, map[string]any{"circleId": "family", "content": "ghost"})

	// Then none of them is served
	req.Equal([]domain.RoomID{domain.CircleRoom("family")}, f.registry.RoomsOf("A"))
	req.Empty(b.Named(event.ChatMessage))
	req.Empty(first.Named(event.ChatMessageSent))
	req.Empty(second.Named(event.ChatMessageSent))

	// And the live connection is served as usual
	f.send(second, event.ChatSend, map[string]any{"circleId": "family", "content": "here"})
	req.Len(b.Named(event.ChatMessage), 1)
	req.Len(second.Named(event.ChatMessageSent), 1)
}

type panickingStore struct{}

func (panickingStore) Persist(context.Context, domain.Message) (domain.Message, error) {
	panic("store exploded")
}

func TestHub_Panic_Is_Isolated_To_One_Event(t *testing.T) {
	req := require.New(t)
	f := newFixture(fixtureDeps{store: panickingStore{}})
	a := f.connect(t, "A", "family")
	b := f.connect(t, "B", "family")

	// When handling the chat message panics
	req.NotPanics(func() {
		f.send(a, event.ChatSend, map[string]any{"circleId": "family", "content": "boom"})
	})

	// Then only the sender gets an internal error
	errs := a.Named(event.Error)
	req.Len(errs, 1)
	payload := errs[0].Payload.(event.ErrorPayload)
	req.Equal(event.ChatSend, payload.Event)
	req.Equal("internal_error", payload.Code)
	req.Empty(b.Named(event.Error))
	req.Empty(b.Named(event.ChatMessage))

	// And the connection keeps working
	f.send(a, event.Ping, nil)
	req.Len(a.Named(event.Pong), 1)
	req.Nil(a.ClosedWith())
}
