package workers

import (
	"circle-hub/contract"
	"circle-hub/domain/event"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// HealthMonitoringWorker samples the hub process itself and reports its
// cpu, memory and thread usage.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	telemetry      contract.TelemetrySink
	metricInterval time.Duration
	pid            int32
}

func NewHealthMonitoringWorker(log *slog.Logger, telemetry contract.TelemetrySink,
	metricInterval time.Duration) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:            log,
		telemetry:      telemetry,
		metricInterval: metricInterval,
		pid:            int32(os.Getpid()),
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(w.pid)
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			evt, err := w.sample(p)
			if err != nil {
				w.log.Error("Error while sampling process", "pid", w.pid, "err", err)
				continue
			}
			w.telemetry.Emit(evt)
		}
	}
}

func (w *HealthMonitoringWorker) sample(p *process.Process) (event.Event, error) {
	cpu, err := p.CPUPercent()
	if err != nil {
		return event.Event{}, err
	}
	ram, err := p.MemoryPercent()
	if err != nil {
		return event.Event{}, err
	}
	threads, err := p.NumThreads()
	if err != nil {
		return event.Event{}, err
	}
	return event.NewEvent(event.PIDTrackerType, event.ProcessTracker{
		PID:        w.pid,
		NumThreads: threads,
		Cpu:        cpu,
		Ram:        ram,
	}), nil
}
