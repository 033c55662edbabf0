package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type AlertKind string

const (
	PanicAlert    AlertKind = "panic"
	MedicalAlert  AlertKind = "medical"
	LocationAlert AlertKind = "location"
	CustomAlert   AlertKind = "custom"
)

// EmergencyAlert is raised by one user towards every circle they belong to.
// Alerts are never deleted; resolving one is the only mutation.
type EmergencyAlert struct {
	ID         uuid.UUID
	SenderID   string
	SenderName string
	Kind       AlertKind
	Message    string
	Location   *GeoPoint
	Rooms      []RoomID
	CreatedAt  time.Time
	Resolved   bool
	ResolvedBy string
	ResolvedAt *time.Time
	Responders []string
}

// Resolve marks the alert resolved. A second call is a no-op and reports false.
func (a *EmergencyAlert) Resolve(by string, now time.Time) bool {
	if a.Resolved {
		return false
	}
	a.Resolved = true
	a.ResolvedBy = by
	a.ResolvedAt = &now
	if !slices.Contains(a.Responders, by) {
		a.Responders = append(a.Responders, by)
	}
	return true
}
