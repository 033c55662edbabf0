// Package transport adapts websocket connections to the hub.
package transport

import (
	"circle-hub/contract"
	"circle-hub/domain/event"
	"circle-hub/errors"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Dispatcher receives the frames read from a connection, one at a time.
type Dispatcher interface {
	Dispatch(ctx context.Context, conn contract.Connection, frame []byte, receivedAt time.Time)
	SlowConsumer(conn contract.Connection, capacity int)
}

type Options struct {
	// Size of the outbound queue. A connection whose queue is full is dropped.
	BufferSize int
	// Time allowed to read the next pong message from the peer.
	PongWait time.Duration
	// Time allowed to write a message to the peer.
	WriteWait time.Duration
	// Maximum message size allowed from peer.
	MaxMessageSize int64
}

// pingPeriod must be less than pongWait.
func (o Options) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

// Connection is one websocket client. Inbound frames are dispatched sequentially
// by the read pump, outbound frames are written by the write pump from a bounded queue.
type Connection struct {
	id         uuid.UUID
	userID     string
	ws         *websocket.Conn
	log        *slog.Logger
	dispatcher Dispatcher
	opts       Options
	send       chan event.Outbound

	closeOnce sync.Once
	done      chan struct{}
	mu        sync.Mutex
	reason    error
}

func NewConnection(ws *websocket.Conn, userID string, dispatcher Dispatcher, opts Options, log *slog.Logger) *Connection {
	id := uuid.New()
	return &Connection{
		id:         id,
		userID:     userID,
		ws:         ws,
		log:        log.With("user_id", userID, "conn_id", id),
		dispatcher: dispatcher,
		opts:       opts,
		send:       make(chan event.Outbound, opts.BufferSize),
		done:       make(chan struct{}),
	}
}

func (c *Connection) ID() uuid.UUID  { return c.id }
func (c *Connection) UserID() string { return c.userID }

// Send queues out without ever blocking. A full queue means the client cannot keep
// up: the connection is closed rather than letting it slow down everyone else.
func (c *Connection) Send(out event.Outbound) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- out:
		return true
	default:
		c.log.Warn("Outbound queue full, dropping connection", "capacity", cap(c.send))
		c.Close(errors.ErrSlowConsumer)
		c.dispatcher.SlowConsumer(c, cap(c.send))
		return false
	}
}

// Close is idempotent; the first reason wins.
func (c *Connection) Close(reason error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.reason = reason
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *Connection) Reason() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Run pumps the connection until the peer leaves, the connection is closed or
// ctx is cancelled. It returns the reason the connection ended.
func (c *Connection) Run(ctx context.Context) error {
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		c.writePump(ctx)
	}()

	err := c.readPump(ctx)
	c.Close(err)
	<-writeDone
	return c.Reason()
}

func (c *Connection) readPump(ctx context.Context) error {
	c.ws.SetReadLimit(c.opts.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		messageType, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("WebSocket read error", "error", err)
			}
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		// Every message from the peer proves it is alive
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		c.dispatcher.Dispatch(ctx, c, frame, time.Now().UTC())
	}
}

func (c *Connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case out := <-c.send:
			if err := c.write(out); err != nil {
				c.log.Debug("Failed to write message", "event", out.Event, "error", err)
				c.Close(err)
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close(err)
				return
			}

		case <-ctx.Done():
			c.Close(errors.ErrHubShuttingDown)
			c.writeClose()
			return

		case <-c.done:
			c.flush()
			c.writeClose()
			return
		}
	}
}

func (c *Connection) write(out event.Outbound) error {
	data, err := json.Marshal(out)
	if err != nil {
		c.log.Error("Failed to marshal message", "event", out.Event, "error", err)
		return nil
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// flush writes what was queued before the close, unless the close is due to the
// queue itself being full.
func (c *Connection) flush() {
	if c.Reason() == errors.ErrSlowConsumer {
		return
	}
	for {
		select {
		case out := <-c.send:
			if err := c.write(out); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Connection) writeClose() {
	code, text := closeCode(c.Reason())
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(c.opts.WriteWait))
}

func closeCode(reason error) (int, string) {
	switch reason {
	case nil:
		return websocket.CloseNormalClosure, ""
	case errors.ErrSlowConsumer:
		return websocket.CloseTryAgainLater, reason.Error()
	case errors.ErrSuperseded:
		return websocket.ClosePolicyViolation, reason.Error()
	case errors.ErrHubShuttingDown:
		return websocket.CloseGoingAway, reason.Error()
	default:
		return websocket.CloseInternalServerErr, "connection error"
	}
}
