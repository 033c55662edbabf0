package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")

	ErrAuthenticationFailed = fmt.Errorf("authentication failed")
	ErrProfileNotFound      = fmt.Errorf("profile not found")

	ErrNotAMember          = fmt.Errorf("not a member of the room")
	ErrPersistenceFailed   = fmt.Errorf("message persistence failed")
	ErrEmptyParticipantSet = fmt.Errorf("no participant could be reached")
	ErrCallNotFound        = fmt.Errorf("call not found")
	ErrNotAParticipant     = fmt.Errorf("not a participant of the call")
	ErrAlertNotFound       = fmt.Errorf("emergency alert not found")

	ErrUnknownEvent    = fmt.Errorf("unknown event")
	ErrInvalidPayload  = fmt.Errorf("invalid payload")
	ErrSlowConsumer    = fmt.Errorf("outbound queue full")
	ErrSuperseded      = fmt.Errorf("connection superseded by a newer one")
	ErrHubShuttingDown = fmt.Errorf("hub is shutting down")
)
