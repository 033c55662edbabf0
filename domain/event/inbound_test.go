package event

import (
	"circle-hub/domain"
	"circle-hub/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecode_KnownEvents(t *testing.T) {
	req := require.New(t)

	tests := []struct {
		name     string
		frame    string
		expected Inbound
	}{
		{
			name:     "chat by circle",
			frame:    `{"event":"chat:send","payload":{"circleId":"7","content":"hello"}}`,
			expected: SendChat{Target: Target{CircleID: "7"}, Content: "hello"},
		},
		{
			name:     "legacy chat name",
			frame:    `{"event":"chat:send_message","payload":{"roomId":"circle_7","content":"hi","type":"text"}}`,
			expected: SendChat{Target: Target{RoomID: "circle_7"}, Content: "hi", Kind: "text"},
		},
		{
			name:     "typing",
			frame:    `{"event":"chat:typing","payload":{"roomId":"r1","isTyping":true}}`,
			expected: TypingSignal{Target: Target{RoomID: "r1"}, IsTyping: true},
		},
		{
			name:     "call without participants still decodes",
			frame:    `{"event":"call:initiate","payload":{"participants":[]}}`,
			expected: StartCall{Participants: []string{}},
		},
		{
			name:     "answer",
			frame:    `{"event":"call:answer","payload":{"callId":"1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed"}}`,
			expected: AnswerCall{CallID: "1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed"},
		},
		{
			name:     "ping without payload",
			frame:    `{"event":"ping"}`,
			expected: Heartbeat{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, in, err := Decode([]byte(tt.frame))
			req.NoError(err)
			req.Equal(tt.expected, in)
		})
	}
}

func TestDecode_Rejections(t *testing.T) {
	req := require.New(t)

	tests := []struct {
		name  string
		frame string
		err   error
	}{
		{"not json", `hello`, errors.ErrInvalidPayload},
		{"unknown event", `{"event":"chat:delete"}`, errors.ErrUnknownEvent},
		{"missing content", `{"event":"chat:send","payload":{"roomId":"r1"}}`, errors.ErrInvalidPayload},
		{"missing room", `{"event":"chat:send","payload":{"content":"x"}}`, errors.ErrInvalidPayload},
		{"system kind from a client", `{"event":"chat:send","payload":{"roomId":"r1","content":"x","type":"system"}}`, errors.ErrInvalidPayload},
		{"latitude out of range", `{"event":"location:update","payload":{"latitude":123,"longitude":2}}`, errors.ErrInvalidPayload},
		{"call id not a uuid", `{"event":"call:end","payload":{"callId":"call_1"}}`, errors.ErrInvalidPayload},
		{"unknown alert type", `{"event":"emergency:alert","payload":{"type":"zombie"}}`, errors.ErrInvalidPayload},
		{"payload of the wrong shape", `{"event":"room:join","payload":["r1"]}`, errors.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, in, err := Decode([]byte(tt.frame))
			req.ErrorIs(err, tt.err)
			req.Nil(in)
		})
	}
}

func TestDecode_ReturnsNameOnFailure(t *testing.T) {
	req := require.New(t)

	name, _, err := Decode([]byte(`{"event":"call:answer","payload":{}}`))

	req.Error(err)
	req.Equal(CallAnswer, name)
}

func TestTarget_Room(t *testing.T) {
	req := require.New(t)

	req.Equal(domain.RoomID("r1"), Target{RoomID: "r1", CircleID: "7"}.Room())
	req.Equal(domain.CircleRoom("7"), Target{CircleID: "7"}.Room())
}
