package conversation

import "context"

// flight is the one open stream of a conversation.
type flight struct {
	messageID string
	cancel    context.CancelCauseFunc
	done      chan struct{}
}

func newFlight(ctx context.Context, messageID string) (context.Context, *flight) {
	fctx, cancel := context.WithCancelCause(ctx)
	return fctx, &flight{messageID: messageID, cancel: cancel, done: make(chan struct{})}
}

// Done is closed when the stream has landed and state is final.
func (f *flight) Done() <-chan struct{} {
	return f.done
}
