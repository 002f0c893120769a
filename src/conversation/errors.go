package conversation

import "errors"

var (
	// ErrStreamInFlight is returned by Send while the conversation is
	// streaming.
	ErrStreamInFlight = errors.New("a response is already streaming for this conversation")
	// ErrConversationNotFound is returned for unknown conversation ids.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrNoDraft is returned when an operation targets the draft and there
	// is none.
	ErrNoDraft = errors.New("no draft conversation")
	// ErrEmptyMessage is returned by Send for blank text.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrDeleted is the cancellation cause of a stream whose conversation
	// was deleted.
	ErrDeleted = errors.New("conversation deleted")
	// ErrNotStreaming is returned by Stop when nothing is in flight.
	ErrNotStreaming = errors.New("conversation is not streaming")

	errStopped = errors.New("stopped")
)
