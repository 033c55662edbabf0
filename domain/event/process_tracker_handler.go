package event

import (
	"circle-hub/errors"
	"fmt"
	"log/slog"
)

type ProcessTrackerHandler struct {
	log *slog.Logger
}

func NewProcessTrackerHandler(log *slog.Logger) *ProcessTrackerHandler {
	return &ProcessTrackerHandler{log: log}
}

func (h ProcessTrackerHandler) Handle(event Event) {
	switch event.Type {
	case PIDTrackerType:
		payload, ok := event.Payload.(ProcessTracker)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.log.Debug(fmt.Sprintf("[HUB] | PID %d | THREADS %d | CPU %.2f%% | RAM %.2f%%",
			payload.PID, payload.NumThreads, payload.Cpu, payload.Ram))
	}
}
