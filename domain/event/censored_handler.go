package event

import (
	"circle-hub/errors"
	"log/slog"
	"maps"
	"sync"
)

// CensoredHandler keeps a hit count per censored word.
type CensoredHandler struct {
	mu      sync.Mutex
	log     *slog.Logger
	counter *Counter
	hit     map[string]uint64
}

func NewCensoredHandler(log *slog.Logger, counter *Counter) *CensoredHandler {
	return &CensoredHandler{
		log:     log,
		counter: counter,
		hit:     make(map[string]uint64),
	}
}

func (h *CensoredHandler) Handle(event Event) {
	switch event.Type {
	case CensorshipHitType:
		payload, ok := event.Payload.(Censored)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.mu.Lock()
		h.hit[payload.Word]++
		h.mu.Unlock()
		h.counter.Increment(CensorshipHitType)
		h.log.Debug("Censored word hit", "room_id", payload.RoomID, "word", payload.Word)
	}
}

func (h *CensoredHandler) Hits() map[string]uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return maps.Clone(h.hit)
}
