//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"circle-hub/domain"
	"circle-hub/domain/event"
	"context"
	"reflect"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Connection is one live, authenticated client.
// Send never blocks: it reports false when the frame could not be queued.
type Connection interface {
	ID() uuid.UUID
	UserID() string
	Send(out event.Outbound) bool
	Close(reason error)
}

// IdentityVerifier checks a credential and returns the user id it was issued to.
type IdentityVerifier interface {
	Verify(credential string) (string, error)
}

// ProfileDirectory resolves users, their circles and the device tokens used for push.
type ProfileDirectory interface {
	Profile(ctx context.Context, userID string) (domain.Profile, error)
	CircleMembers(ctx context.Context, circleIDs []string) ([]string, error)
	DeviceTokens(ctx context.Context, userIDs []string) ([]string, error)
}

// MessageStore persists a message and assigns its id and timestamp.
type MessageStore interface {
	Persist(ctx context.Context, msg domain.Message) (domain.Message, error)
}

type PushNotifier interface {
	Notify(ctx context.Context, tokens []string, alert domain.EmergencyAlert) error
}

// LocationHistoryWriter receives every location snapshot; it must not block the caller.
type LocationHistoryWriter interface {
	Record(snapshot domain.LocationSnapshot)
}

type AlertStore interface {
	SaveAlert(ctx context.Context, alert domain.EmergencyAlert) error
}

type CallHistoryWriter interface {
	SaveCall(ctx context.Context, call domain.CallSession) error
}

type PresenceStore interface {
	SetPresence(ctx context.Context, presence domain.Presence) error
}

// Moderator rewrites message content and reports the censored words.
type Moderator interface {
	Censor(content string) (string, []string)
	DetectLanguage(content string) string
}

// TelemetrySink accepts technical events without blocking.
type TelemetrySink interface {
	Emit(evt event.Event)
}
