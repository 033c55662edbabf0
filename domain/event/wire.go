// Package event defines what travels between the hub and its clients, plus the
// technical events the hub reports to its own telemetry.
package event

import "encoding/json"

// Name identifies an event on the wire.
type Name string

// Inbound names.
const (
	ChatSend         Name = "chat:send"
	ChatSendMessage  Name = "chat:send_message"
	ChatTyping       Name = "chat:typing"
	LocationUpdate   Name = "location:update"
	LocationRequest  Name = "location:request"
	CallInitiate     Name = "call:initiate"
	CallAnswer       Name = "call:answer"
	CallReject       Name = "call:reject"
	CallEnd          Name = "call:end"
	EmergencyAlert   Name = "emergency:alert"
	EmergencyResolve Name = "emergency:resolve"
	RoomJoin         Name = "room:join"
	RoomLeave        Name = "room:leave"
	Ping             Name = "ping"
)

// Outbound names. Events relayed as-is reuse their inbound name.
const (
	ChatMessage       Name = "chat:message"
	ChatMessageSent   Name = "chat:message_sent"
	ChatError         Name = "chat:error"
	CallIncoming      Name = "call:incoming"
	CallInitiated     Name = "call:initiated"
	CallAnswered      Name = "call:answered"
	CallRejected      Name = "call:rejected"
	CallEnded         Name = "call:ended"
	EmergencyResolved Name = "emergency:resolved"
	PresenceChanged   Name = "presence-changed"
	Error             Name = "error"
	Pong              Name = "pong"
)

// Envelope is the frame shared by both directions.
type Envelope struct {
	Event   Name            `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
