package event

import (
	"circle-hub/errors"
	"log/slog"
	"time"
)

// MessageRelayedHandler counts relayed chat messages and reports slow relays,
// measured from the moment the frame was read to the end of the fan-out.
type MessageRelayedHandler struct {
	log              *slog.Logger
	counter          *Counter
	latencyThreshold time.Duration
}

func NewMessageRelayedHandler(log *slog.Logger, counter *Counter, latencyThreshold time.Duration) *MessageRelayedHandler {
	return &MessageRelayedHandler{log: log, counter: counter, latencyThreshold: latencyThreshold}
}

func (h *MessageRelayedHandler) Handle(event Event) {
	switch event.Type {
	case MessageRelayedType:
		payload, ok := event.Payload.(MessageRelayed)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.counter.Increment(MessageRelayedType)
		leadTime := event.CreatedAt.Sub(payload.ReceivedAt)
		if h.latencyThreshold > 0 && leadTime > h.latencyThreshold {
			h.log.Warn("high relay latency detected",
				"room_id", payload.RoomID,
				"sender_id", payload.SenderID,
				"recipients", payload.Recipients,
				"lead_time_ms", leadTime.Milliseconds())
		}
	}
}
