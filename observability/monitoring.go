// Package observability aggregates the live metrics of the hub for the debug endpoints.
package observability

import (
	"circle-hub/domain/event"
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// HubStats is the live state of the hub as seen by the registry and the call manager.
type HubStats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
	ActiveCalls int `json:"active_calls"`
}

type HubStatsProvider func() HubStats

type ChannelStats struct {
	Capacity int `json:"capacity"`
	Length   int `json:"length"`
}

// MonitoringStats aggregates every metric exposed on /debug/stats.
type MonitoringStats struct {
	HubStats

	// Technical events counted by type
	Events map[string]uint64 `json:"events"`
	// Last sample of each internal buffer
	Channels map[string]ChannelStats `json:"channels"`

	// Process metrics
	CpuPercent float64 `json:"cpu_percent"`
	RamPercent float32 `json:"ram_percent"`
	NumThreads int32   `json:"num_threads"`

	// Go runtime metrics
	AllocMemMb    uint64    `json:"alloc_mem_mb"`
	NumGC         uint32    `json:"num_gc"`
	NumGoroutines int       `json:"num_goroutines"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MonitoringManager is both a telemetry handler, keeping the last process and
// channel samples, and a worker refreshing the aggregated stats every interval.
type MonitoringManager struct {
	log         *slog.Logger
	counter     *event.Counter
	hubStats    HubStatsProvider
	interval    time.Duration
	mu          sync.RWMutex
	latestStats MonitoringStats
}

func NewMonitoringManager(log *slog.Logger, counter *event.Counter,
	hubStats HubStatsProvider, interval time.Duration) *MonitoringManager {
	return &MonitoringManager{
		log:      log,
		counter:  counter,
		hubStats: hubStats,
		interval: interval,
		latestStats: MonitoringStats{
			Events:   make(map[string]uint64),
			Channels: make(map[string]ChannelStats),
		},
	}
}

func (mm *MonitoringManager) Handle(evt event.Event) {
	switch payload := evt.Payload.(type) {
	case event.ProcessTracker:
		mm.mu.Lock()
		mm.latestStats.CpuPercent = payload.Cpu
		mm.latestStats.RamPercent = payload.Ram
		mm.latestStats.NumThreads = payload.NumThreads
		mm.mu.Unlock()
	case event.ChannelCapacity:
		mm.mu.Lock()
		mm.latestStats.Channels[payload.ChannelName] = ChannelStats{Capacity: payload.Capacity, Length: payload.Length}
		mm.mu.Unlock()
	}
}

func (mm *MonitoringManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(mm.interval)
	defer ticker.Stop()
	mm.Refresh()
	for {
		select {
		case <-ctx.Done():
			mm.log.Info("Monitoring manager stopped")
			return nil
		case <-ticker.C:
			mm.Refresh()
		}
	}
}

// Refresh recomputes the stats that are pulled rather than pushed.
func (mm *MonitoringManager) Refresh() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	var hub HubStats
	if mm.hubStats != nil {
		hub = mm.hubStats()
	}

	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.latestStats.HubStats = hub
	if mm.counter != nil {
		mm.latestStats.Events = mm.counter.Snapshot()
	}
	mm.latestStats.AllocMemMb = m.Alloc / 1024 / 1024
	mm.latestStats.NumGC = m.NumGC
	mm.latestStats.NumGoroutines = runtime.NumGoroutine()
	mm.latestStats.UpdatedAt = time.Now().UTC()

	mm.log.Debug("Stats updated",
		"connections", hub.Connections,
		"rooms", hub.Rooms,
		"active_calls", hub.ActiveCalls,
		"mem_mb", mm.latestStats.AllocMemMb,
	)
}

// GetLatest returns a copy of the last computed stats.
func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	stats := mm.latestStats
	stats.Events = make(map[string]uint64, len(mm.latestStats.Events))
	for k, v := range mm.latestStats.Events {
		stats.Events[k] = v
	}
	stats.Channels = make(map[string]ChannelStats, len(mm.latestStats.Channels))
	for k, v := range mm.latestStats.Channels {
		stats.Channels[k] = v
	}
	return stats
}
