package event

import (
	"circle-hub/domain"
	"sync"
	"time"
)

type Type string

const (
	RestartedAfterPanicType Type = "WORKER_RESTARTED_AFTER_PANIC"
	ChannelCapacityType     Type = "CHANNEL_CAPACITY"
	PIDTrackerType          Type = "PID_TRACKER"
	MessageRelayedType      Type = "MESSAGE_RELAYED"
	CensorshipHitType       Type = "CENSORSHIP_HIT"
	SlowConsumerType        Type = "SLOW_CONSUMER"
)

// Event is a technical event consumed by the telemetry worker, never sent to clients.
type Event struct {
	Type      Type
	CreatedAt time.Time
	Payload   any
}

func NewEvent(t Type, payload any) Event {
	return Event{Type: t, CreatedAt: time.Now().UTC(), Payload: payload}
}

type WorkerRestartedAfterPanic struct {
	WorkerName string
}

type ChannelCapacity struct {
	ChannelName string
	Capacity    int
	Length      int
}

type ProcessTracker struct {
	PID        int32
	NumThreads int32
	Cpu        float64
	Ram        float32
}

type MessageRelayed struct {
	RoomID     domain.RoomID
	SenderID   string
	Recipients int
	ReceivedAt time.Time
}

type Censored struct {
	RoomID domain.RoomID
	Word   string
}

type SlowConsumer struct {
	UserID   string
	ConnID   string
	Capacity int
}

// Counter counts technical events per type.
type Counter struct {
	mu     sync.RWMutex
	counts map[Type]uint64
}

func NewCounter() *Counter {
	return &Counter{counts: make(map[Type]uint64)}
}

func (c *Counter) Increment(t Type) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[t]++
}

func (c *Counter) Get(t Type) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counts[t]
}

// Snapshot copies every counter, keyed by type name.
func (c *Counter) Snapshot() map[string]uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res := make(map[string]uint64, len(c.counts))
	for t, n := range c.counts {
		res[string(t)] = n
	}
	return res
}
