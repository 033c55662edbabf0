// Package domain contains core concepts of the hub.
// This file defines chat messages relayed inside a room.
// Messages are immutable once the store has assigned their id and timestamp.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageKind string

const (
	TextMessage     MessageKind = "text"
	ImageMessage    MessageKind = "image"
	LocationMessage MessageKind = "location"
	SystemMessage   MessageKind = "system"
)

// Message represents an immutable chat event.
type Message struct {
	ID            uuid.UUID // assigned by the message store
	RoomID        RoomID
	SenderID      string
	SenderName    string
	Content       string
	Kind          MessageKind
	Metadata      map[string]string
	CensoredWords []string
	CreatedAt     time.Time // assigned by the message store
}

// Draft is what a sender submits before persistence.
type Draft struct {
	RoomID     RoomID
	SenderID   string
	SenderName string
	Content    string
	Kind       MessageKind
	Metadata   map[string]string
}

func (d Draft) ToMessage() Message {
	kind := d.Kind
	if kind == "" {
		kind = TextMessage
	}
	return Message{
		RoomID:     d.RoomID,
		SenderID:   d.SenderID,
		SenderName: d.SenderName,
		Content:    d.Content,
		Kind:       kind,
		Metadata:   d.Metadata,
	}
}
