package event

import (
	"circle-hub/domain"
	"time"
)

// Outbound is a frame queued for one connection.
type Outbound struct {
	Event   Name `json:"event"`
	Payload any  `json:"payload,omitempty"`
}

type MessagePayload struct {
	ID         string            `json:"id"`
	RoomID     domain.RoomID     `json:"roomId"`
	CircleID   string            `json:"circleId,omitempty"`
	SenderID   string            `json:"senderId"`
	SenderName string            `json:"senderName"`
	Content    string            `json:"content"`
	Type       string            `json:"type"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

type MessageSentPayload struct {
	ID        string        `json:"id"`
	RoomID    domain.RoomID `json:"roomId"`
	Timestamp time.Time     `json:"timestamp"`
}

type ErrorPayload struct {
	Event   Name   `json:"event,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type TypingPayload struct {
	UserID   string        `json:"userId"`
	RoomID   domain.RoomID `json:"roomId"`
	IsTyping bool          `json:"isTyping"`
}

type LocationPayload struct {
	UserID       string    `json:"userId"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Accuracy     float64   `json:"accuracy"`
	Address      string    `json:"address,omitempty"`
	PlaceLabel   string    `json:"placeLabel,omitempty"`
	BatteryLevel *int      `json:"batteryLevel,omitempty"`
	IsOnline     bool      `json:"isOnline"`
	Timestamp    time.Time `json:"timestamp"`
}

type LocationRequestPayload struct {
	RequesterID string `json:"requesterId"`
}

type CallPayload struct {
	CallID       string     `json:"callId"`
	InitiatorID  string     `json:"initiatorId"`
	Participants []string   `json:"participants"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	By           string     `json:"by,omitempty"`
	StartedAt    time.Time  `json:"startTime"`
	AnsweredAt   *time.Time `json:"answerTime,omitempty"`
	EndedAt      *time.Time `json:"endTime,omitempty"`
	DurationMs   int64      `json:"duration,omitempty"`
	Warning      string     `json:"warning,omitempty"`
}

type AlertPayload struct {
	ID         string      `json:"id"`
	SenderID   string      `json:"senderId"`
	SenderName string      `json:"senderName"`
	Type       string      `json:"type"`
	Message    string      `json:"message,omitempty"`
	Location   *GeoPayload `json:"location,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	IsResolved bool        `json:"isResolved"`
	Responders []string    `json:"responders"`
}

type AlertResolvedPayload struct {
	AlertID    string    `json:"alertId"`
	ResolvedBy string    `json:"resolvedBy"`
	ResolvedAt time.Time `json:"resolvedAt"`
}

type PresencePayload struct {
	UserID string        `json:"userId"`
	RoomID domain.RoomID `json:"roomId,omitempty"`
	Online bool          `json:"online"`
	At     time.Time     `json:"at"`
}

type PongPayload struct {
	ServerTime int64 `json:"serverTime"`
}

func NewChatMessage(msg domain.Message) Outbound {
	circleID, _ := msg.RoomID.CircleID()
	return Outbound{Event: ChatMessage, Payload: MessagePayload{
		ID:         msg.ID.String(),
		RoomID:     msg.RoomID,
		CircleID:   circleID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Content:    msg.Content,
		Type:       string(msg.Kind),
		Metadata:   msg.Metadata,
		Timestamp:  msg.CreatedAt,
	}}
}

func NewMessageSent(msg domain.Message) Outbound {
	return Outbound{Event: ChatMessageSent, Payload: MessageSentPayload{
		ID:        msg.ID.String(),
		RoomID:    msg.RoomID,
		Timestamp: msg.CreatedAt,
	}}
}

func NewError(name Name, source Name, code, message string) Outbound {
	return Outbound{Event: name, Payload: ErrorPayload{Event: source, Code: code, Message: message}}
}

func NewTyping(userID string, roomID domain.RoomID, isTyping bool) Outbound {
	return Outbound{Event: ChatTyping, Payload: TypingPayload{UserID: userID, RoomID: roomID, IsTyping: isTyping}}
}

func NewLocationUpdate(s domain.LocationSnapshot) Outbound {
	return Outbound{Event: LocationUpdate, Payload: LocationPayload{
		UserID:       s.UserID,
		Latitude:     s.Latitude,
		Longitude:    s.Longitude,
		Accuracy:     s.Accuracy,
		Address:      s.Address,
		PlaceLabel:   s.PlaceLabel,
		BatteryLevel: s.BatteryLevel,
		IsOnline:     true,
		Timestamp:    s.At,
	}}
}

func NewLocationRequest(requesterID string) Outbound {
	return Outbound{Event: LocationRequest, Payload: LocationRequestPayload{RequesterID: requesterID}}
}

func NewCall(name Name, call domain.CallSession, by string) Outbound {
	return Outbound{Event: name, Payload: toCallPayload(call, by)}
}

func NewCallInitiated(call domain.CallSession, warning string) Outbound {
	payload := toCallPayload(call, call.InitiatorID)
	payload.Warning = warning
	return Outbound{Event: CallInitiated, Payload: payload}
}

func toCallPayload(call domain.CallSession, by string) CallPayload {
	return CallPayload{
		CallID:       call.ID.String(),
		InitiatorID:  call.InitiatorID,
		Participants: call.ParticipantIDs,
		Type:         string(call.Kind),
		Status:       string(call.Status),
		By:           by,
		StartedAt:    call.StartedAt,
		AnsweredAt:   call.AnsweredAt,
		EndedAt:      call.EndedAt,
		DurationMs:   call.Duration.Milliseconds(),
	}
}

func NewEmergencyAlert(alert domain.EmergencyAlert) Outbound {
	payload := AlertPayload{
		ID:         alert.ID.String(),
		SenderID:   alert.SenderID,
		SenderName: alert.SenderName,
		Type:       string(alert.Kind),
		Message:    alert.Message,
		Timestamp:  alert.CreatedAt,
		IsResolved: alert.Resolved,
		Responders: alert.Responders,
	}
	if payload.Responders == nil {
		payload.Responders = []string{}
	}
	if alert.Location != nil {
		payload.Location = &GeoPayload{
			Latitude:  alert.Location.Latitude,
			Longitude: alert.Location.Longitude,
			Address:   alert.Location.Address,
		}
	}
	return Outbound{Event: EmergencyAlert, Payload: payload}
}

func NewEmergencyResolved(alert domain.EmergencyAlert) Outbound {
	payload := AlertResolvedPayload{AlertID: alert.ID.String(), ResolvedBy: alert.ResolvedBy}
	if alert.ResolvedAt != nil {
		payload.ResolvedAt = *alert.ResolvedAt
	}
	return Outbound{Event: EmergencyResolved, Payload: payload}
}

func NewPresence(userID string, roomID domain.RoomID, online bool, at time.Time) Outbound {
	return Outbound{Event: PresenceChanged, Payload: PresencePayload{UserID: userID, RoomID: roomID, Online: online, At: at}}
}

func NewPong(at time.Time) Outbound {
	return Outbound{Event: Pong, Payload: PongPayload{ServerTime: at.UnixMilli()}}
}
