package event

import (
	"circle-hub/errors"
	"log/slog"
)

// SlowConsumerHandler reports connections dropped because their outbound queue was full.
type SlowConsumerHandler struct {
	log     *slog.Logger
	counter *Counter
}

func NewSlowConsumerHandler(log *slog.Logger, counter *Counter) *SlowConsumerHandler {
	return &SlowConsumerHandler{log: log, counter: counter}
}

func (h *SlowConsumerHandler) Handle(event Event) {
	switch event.Type {
	case SlowConsumerType:
		payload, ok := event.Payload.(SlowConsumer)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.counter.Increment(SlowConsumerType)
		h.log.Warn("Slow consumer disconnected",
			"user_id", payload.UserID,
			"conn_id", payload.ConnID,
			"capacity", payload.Capacity)
	}
}
