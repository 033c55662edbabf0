// Package push delivers emergency alerts to the devices of circle members,
// including the ones without a live connection.
package push

import (
	"circle-hub/domain"
	"encoding/json"
)

// Notification is the document handed to the push gateway.
// The gateway fans it out to every device token.
type Notification struct {
	Type       string    `json:"type"`
	AlertID    string    `json:"alert_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Kind       string    `json:"kind"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Location   *Location `json:"location,omitempty"`
	Tokens     []string  `json:"tokens"`
	Timestamp  int64     `json:"timestamp"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

func NewNotification(tokens []string, alert domain.EmergencyAlert) Notification {
	n := Notification{
		Type:       "emergency",
		AlertID:    alert.ID.String(),
		SenderID:   alert.SenderID,
		SenderName: alert.SenderName,
		Kind:       string(alert.Kind),
		Title:      "Emergency: " + alert.SenderName,
		Body:       alert.Message,
		Tokens:     tokens,
		Timestamp:  alert.CreatedAt.UnixMilli(),
	}
	if n.Body == "" {
		n.Body = alert.SenderName + " needs help (" + string(alert.Kind) + ")"
	}
	if alert.Location != nil {
		n.Location = &Location{
			Latitude:  alert.Location.Latitude,
			Longitude: alert.Location.Longitude,
			Address:   alert.Location.Address,
		}
	}
	return n
}

func (n Notification) Marshal() ([]byte, error) {
	return json.Marshal(n)
}
