package workers

import (
	"circle-hub/domain"
	"context"
	"log/slog"
	"time"
)

type LocationSaver interface {
	SaveLocation(ctx context.Context, snapshot domain.LocationSnapshot) error
}

// LocationHistoryWorker keeps location writes off the dispatch path.
// Record only queues the snapshot; a full queue drops it.
type LocationHistoryWorker struct {
	log       *slog.Logger
	saver     LocationSaver
	snapshots chan domain.LocationSnapshot
	timeout   time.Duration
}

func NewLocationHistoryWorker(log *slog.Logger, saver LocationSaver,
	bufferSize int, timeout time.Duration) *LocationHistoryWorker {
	return &LocationHistoryWorker{
		log:       log,
		saver:     saver,
		snapshots: make(chan domain.LocationSnapshot, bufferSize),
		timeout:   timeout,
	}
}

func (w *LocationHistoryWorker) Record(snapshot domain.LocationSnapshot) {
	select {
	case w.snapshots <- snapshot:
	default:
		w.log.Debug("Location snapshot dropped", "user_id", snapshot.UserID)
	}
}

func (w *LocationHistoryWorker) Channel() chan domain.LocationSnapshot {
	return w.snapshots
}

func (w *LocationHistoryWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return nil
		case snapshot := <-w.snapshots:
			w.save(context.Background(), snapshot)
		}
	}
}

// drain flushes what is left in the queue on shutdown.
func (w *LocationHistoryWorker) drain() {
	for {
		select {
		case snapshot := <-w.snapshots:
			w.save(context.Background(), snapshot)
		default:
			return
		}
	}
}

func (w *LocationHistoryWorker) save(ctx context.Context, snapshot domain.LocationSnapshot) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.saver.SaveLocation(ctx, snapshot); err != nil {
		w.log.Warn("Unable to save location", "user_id", snapshot.UserID, "error", err)
	}
}
