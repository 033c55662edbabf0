package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newRingingCall(now time.Time) *CallSession {
	return NewCallSession(uuid.New(), "alice", []string{"bob", "carol", "bob", "alice"}, "", "", now)
}

func TestNewCallSession_NormalizesParticipants(t *testing.T) {
	req := require.New(t)
	now := time.Now()

	call := newRingingCall(now)

	req.Equal(CallRinging, call.Status)
	req.Equal(AudioCall, call.Kind)
	req.Equal([]string{"bob", "carol"}, call.ParticipantIDs)
	req.Equal([]string{"alice", "bob", "carol"}, call.Parties())
	req.True(call.IsParty("alice"))
	req.False(call.IsParticipant("alice"))
	req.Equal(now, call.StartedAt)
}

func TestCallSession_AnswerThenEnd(t *testing.T) {
	req := require.New(t)
	start := time.Now()
	call := newRingingCall(start)

	// When the call is answered twice
	req.True(call.Answer(start.Add(2 * time.Second)))
	req.False(call.Answer(start.Add(3 * time.Second)))

	// Then it stays connected and the first answer is kept
	req.Equal(CallConnected, call.Status)
	req.Equal(start.Add(2*time.Second), *call.AnsweredAt)

	// When it ends
	req.True(call.End("bob", start.Add(10*time.Second)))

	// Then the duration covers the whole call
	req.Equal(CallEnded, call.Status)
	req.Equal(10*time.Second, call.Duration)
	req.Equal("bob", call.EndedBy)

	// Then terminal calls never move again
	req.False(call.End("alice", start.Add(20*time.Second)))
	req.False(call.Answer(start.Add(20 * time.Second)))
	req.False(call.Reject("carol", start.Add(20*time.Second)))
	req.Equal(10*time.Second, call.Duration)
}

func TestCallSession_RejectIsMissed(t *testing.T) {
	req := require.New(t)
	start := time.Now()
	call := newRingingCall(start)

	req.True(call.Reject("bob", start.Add(time.Second)))
	req.Equal(CallMissed, call.Status)
	req.NotNil(call.EndedAt)
	req.True(call.IsTerminal())

	// Then a missed call can be neither answered nor ended
	req.False(call.Answer(start.Add(2 * time.Second)))
	req.False(call.End("alice", start.Add(2*time.Second)))
	req.Equal(CallMissed, call.Status)
}

func TestCallSession_EndWhileRinging(t *testing.T) {
	req := require.New(t)
	start := time.Now()
	call := newRingingCall(start)

	req.True(call.End("alice", start.Add(4*time.Second)))
	req.Equal(CallEnded, call.Status)
	req.Nil(call.AnsweredAt)
	req.Equal(4*time.Second, call.Duration)
}

func TestCallSession_DurationNeverNegative(t *testing.T) {
	req := require.New(t)
	start := time.Now()
	call := newRingingCall(start)

	req.True(call.End("alice", start.Add(-time.Second)))
	req.Equal(time.Duration(0), call.Duration)
}

func TestCallSession_SnapshotIsDetached(t *testing.T) {
	req := require.New(t)
	call := newRingingCall(time.Now())

	snapshot := call.Snapshot()
	snapshot.ParticipantIDs[0] = "mallory"

	req.Equal("bob", call.ParticipantIDs[0])
}
