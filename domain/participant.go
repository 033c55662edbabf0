// Package domain contains core concepts of the hub.
// This file defines user profiles and circles, the durable groups rooms derive from.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"

	"github.com/samber/lo"
)

type Profile struct {
	UserID       string
	DisplayName  string
	AvatarURL    string
	CircleIDs    []string
	DeviceTokens []string
}

// Rooms lists the circle rooms the user joins on connect.
func (p Profile) Rooms() []RoomID {
	return lo.Map(lo.Uniq(p.CircleIDs), func(circleID string, _ int) RoomID {
		return CircleRoom(circleID)
	})
}

// Name falls back to the user id when no display name is known.
func (p Profile) Name() string {
	if p.DisplayName == "" {
		return p.UserID
	}
	return p.DisplayName
}

type Circle struct {
	ID        string
	Name      string
	MemberIDs []string
}

// Presence is the last known connectivity of a user.
type Presence struct {
	UserID   string
	Online   bool
	LastSeen time.Time
}
