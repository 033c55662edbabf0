package event

import (
	"circle-hub/domain"
	"circle-hub/errors"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Inbound is the closed set of events a client may send.
// Only types of this package implement it.
type Inbound interface {
	Name() Name
	inbound()
}

// Target carries the two ways a client may address a room.
type Target struct {
	RoomID   string `json:"roomId" validate:"required_without=CircleID"`
	CircleID string `json:"circleId"`
}

func (t Target) Room() domain.RoomID {
	if t.RoomID != "" {
		return domain.RoomID(t.RoomID)
	}
	return domain.CircleRoom(t.CircleID)
}

// SendChat is a client message. The system kind is reserved for the server.
type SendChat struct {
	Target
	Content    string            `json:"content" validate:"required,max=4000"`
	Kind       string            `json:"type" validate:"omitempty,oneof=text image location"`
	Metadata   map[string]string `json:"metadata"`
	SenderName string            `json:"senderName" validate:"max=128"`
}

type TypingSignal struct {
	Target
	IsTyping bool `json:"isTyping"`
}

type LocationReport struct {
	Latitude     float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude    float64 `json:"longitude" validate:"min=-180,max=180"`
	Accuracy     float64 `json:"accuracy" validate:"min=0"`
	Address      string  `json:"address" validate:"max=512"`
	PlaceLabel   string  `json:"placeLabel" validate:"max=128"`
	BatteryLevel *int    `json:"batteryLevel" validate:"omitempty,min=0,max=100"`
}

type LocationAsk struct {
	UserID string `json:"userId" validate:"required"`
}

type StartCall struct {
	Participants []string `json:"participants" validate:"dive,required"`
	Kind         string   `json:"type" validate:"omitempty,oneof=audio video"`
	RoomID       string   `json:"roomId"`
}

type AnswerCall struct {
	CallID string `json:"callId" validate:"required,uuid"`
}

type RejectCall struct {
	CallID string `json:"callId" validate:"required,uuid"`
}

type EndCall struct {
	CallID string `json:"callId" validate:"required,uuid"`
}

type GeoPayload struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
	Address   string  `json:"address,omitempty"`
}

type RaiseAlert struct {
	Kind       string      `json:"type" validate:"required,oneof=panic medical location custom"`
	Message    string      `json:"message" validate:"max=1000"`
	Location   *GeoPayload `json:"location" validate:"omitempty"`
	SenderName string      `json:"senderName" validate:"max=128"`
}

type ResolveAlert struct {
	AlertID string `json:"alertId" validate:"required,uuid"`
}

type JoinRoom struct {
	Target
}

type LeaveRoom struct {
	Target
}

type Heartbeat struct{}

func (SendChat) Name() Name       { return ChatSend }
func (TypingSignal) Name() Name   { return ChatTyping }
func (LocationReport) Name() Name { return LocationUpdate }
func (LocationAsk) Name() Name    { return LocationRequest }
func (StartCall) Name() Name      { return CallInitiate }
func (AnswerCall) Name() Name     { return CallAnswer }
func (RejectCall) Name() Name     { return CallReject }
func (EndCall) Name() Name        { return CallEnd }
func (RaiseAlert) Name() Name     { return EmergencyAlert }
func (ResolveAlert) Name() Name   { return EmergencyResolve }
func (JoinRoom) Name() Name       { return RoomJoin }
func (LeaveRoom) Name() Name      { return RoomLeave }
func (Heartbeat) Name() Name      { return Ping }

func (SendChat) inbound()       {}
func (TypingSignal) inbound()   {}
func (LocationReport) inbound() {}
func (LocationAsk) inbound()    {}
func (StartCall) inbound()      {}
func (AnswerCall) inbound()     {}
func (RejectCall) inbound()     {}
func (EndCall) inbound()        {}
func (RaiseAlert) inbound()     {}
func (ResolveAlert) inbound()   {}
func (JoinRoom) inbound()       {}
func (LeaveRoom) inbound()      {}
func (Heartbeat) inbound()      {}

// Decode parses one websocket frame into its inbound event.
// The returned name is set whenever the envelope itself could be read, so that
// errors can be attributed to the event that caused them.
func Decode(frame []byte) (Name, Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}

	var (
		in  Inbound
		err error
	)
	switch env.Event {
	case ChatSend, ChatSendMessage:
		in, err = decodeInto[SendChat](env.Payload)
	case ChatTyping:
		in, err = decodeInto[TypingSignal](env.Payload)
	case LocationUpdate:
		in, err = decodeInto[LocationReport](env.Payload)
	case LocationRequest:
		in, err = decodeInto[LocationAsk](env.Payload)
	case CallInitiate:
		in, err = decodeInto[StartCall](env.Payload)
	case CallAnswer:
		in, err = decodeInto[AnswerCall](env.Payload)
	case CallReject:
		in, err = decodeInto[RejectCall](env.Payload)
	case CallEnd:
		in, err = decodeInto[EndCall](env.Payload)
	case EmergencyAlert:
		in, err = decodeInto[RaiseAlert](env.Payload)
	case EmergencyResolve:
		in, err = decodeInto[ResolveAlert](env.Payload)
	case RoomJoin:
		in, err = decodeInto[JoinRoom](env.Payload)
	case RoomLeave:
		in, err = decodeInto[LeaveRoom](env.Payload)
	case Ping:
		return env.Event, Heartbeat{}, nil
	default:
		return env.Event, nil, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, env.Event)
	}
	if err != nil {
		return env.Event, nil, err
	}
	return env.Event, in, nil
}

func decodeInto[T Inbound](payload json.RawMessage) (Inbound, error) {
	var v T
	if len(payload) > 0 && string(payload) != "null" {
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
		}
	}
	if err := validate.Struct(v); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return v, nil
}
