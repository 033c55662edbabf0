package workers

import (
	"context"
	"log/slog"
	"time"
)

type CallEvicter interface {
	Evict() int
}

// CallEvictionWorker drops terminated call sessions once their retention expired.
type CallEvictionWorker struct {
	log      *slog.Logger
	calls    CallEvicter
	interval time.Duration
}

func NewCallEvictionWorker(log *slog.Logger, calls CallEvicter, interval time.Duration) *CallEvictionWorker {
	return &CallEvictionWorker{log: log, calls: calls, interval: interval}
}

func (w *CallEvictionWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := w.calls.Evict(); n > 0 {
				w.log.Debug("Evicted terminated calls", "count", n)
			}
		}
	}
}
