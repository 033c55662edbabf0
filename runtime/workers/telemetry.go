package workers

import (
	"circle-hub/domain/event"
	"context"
	"log/slog"
)

// TelemetryWorker drains technical events and hands each of them to every handler.
// Emitting never blocks: when the buffer is full the event is lost.
type TelemetryWorker struct {
	log      *slog.Logger
	events   chan event.Event
	handlers []event.Handler
}

func NewTelemetryWorker(log *slog.Logger, bufferSize int, handlers ...event.Handler) *TelemetryWorker {
	return &TelemetryWorker{
		log:      log,
		events:   make(chan event.Event, bufferSize),
		handlers: handlers,
	}
}

func (w *TelemetryWorker) Emit(evt event.Event) {
	select {
	case w.events <- evt:
	default:
		w.log.Debug("Telemetry event lost", "type", evt.Type)
	}
}

// Channel exposes the buffer to the channel capacity worker.
func (w *TelemetryWorker) Channel() chan event.Event {
	return w.events
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt := <-w.events:
			w.handle(evt)
		}
	}
}

func (w *TelemetryWorker) handle(evt event.Event) {
	for _, h := range w.handlers {
		h.Handle(evt)
	}
}
