package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type CallStatus string

const (
	CallRinging   CallStatus = "ringing"
	CallConnected CallStatus = "connected"
	CallEnded     CallStatus = "ended"
	CallMissed    CallStatus = "missed"
)

type CallKind string

const (
	AudioCall CallKind = "audio"
	VideoCall CallKind = "video"
)

// CallSession is the signaling state of one call.
// Status only moves forward: ringing -> connected -> ended, ringing -> ended, ringing -> missed.
// Every transition goes through Answer, Reject or End.
type CallSession struct {
	ID             uuid.UUID
	InitiatorID    string
	ParticipantIDs []string
	Kind           CallKind
	MirrorRoom     RoomID
	Status         CallStatus
	StartedAt      time.Time
	AnsweredAt     *time.Time
	EndedAt        *time.Time
	Duration       time.Duration
	EndedBy        string
}

// NewCallSession creates a ringing session. Participants are deduplicated and
// the initiator is never counted as one of them.
func NewCallSession(id uuid.UUID, initiatorID string, participantIDs []string,
	kind CallKind, mirrorRoom RoomID, now time.Time) *CallSession {
	if kind == "" {
		kind = AudioCall
	}
	participants := lo.Filter(lo.Uniq(participantIDs), func(p string, _ int) bool {
		return p != "" && p != initiatorID
	})
	return &CallSession{
		ID:             id,
		InitiatorID:    initiatorID,
		ParticipantIDs: participants,
		Kind:           kind,
		MirrorRoom:     mirrorRoom,
		Status:         CallRinging,
		StartedAt:      now,
	}
}

// Parties returns the initiator followed by the participants.
func (c *CallSession) Parties() []string {
	return append([]string{c.InitiatorID}, c.ParticipantIDs...)
}

func (c *CallSession) IsParty(userID string) bool {
	return userID == c.InitiatorID || c.IsParticipant(userID)
}

func (c *CallSession) IsParticipant(userID string) bool {
	return slices.Contains(c.ParticipantIDs, userID)
}

func (c *CallSession) IsTerminal() bool {
	return c.Status == CallEnded || c.Status == CallMissed
}

// Answer moves a ringing call to connected. It reports false when nothing changed.
func (c *CallSession) Answer(now time.Time) bool {
	if c.Status != CallRinging {
		return false
	}
	c.Status = CallConnected
	c.AnsweredAt = &now
	return true
}

// Reject moves a ringing call to missed and stamps its end.
func (c *CallSession) Reject(by string, now time.Time) bool {
	if c.Status != CallRinging {
		return false
	}
	c.Status = CallMissed
	c.EndedAt = &now
	c.EndedBy = by
	return true
}

// End terminates a ringing or connected call; duration is measured from StartedAt.
func (c *CallSession) End(by string, now time.Time) bool {
	if c.IsTerminal() {
		return false
	}
	c.Status = CallEnded
	c.EndedAt = &now
	c.EndedBy = by
	c.Duration = max(now.Sub(c.StartedAt), 0)
	return true
}

// Snapshot returns a copy safe to hand outside the call manager lock.
func (c *CallSession) Snapshot() CallSession {
	cp := *c
	cp.ParticipantIDs = slices.Clone(c.ParticipantIDs)
	return cp
}
