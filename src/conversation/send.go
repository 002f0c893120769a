package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/elee1766/orbital/src/aisdk"
	"github.com/elee1766/orbital/src/search"
	"github.com/elee1766/orbital/src/window"
)

// Inline markers appended to the assistant message when a turn does not
// complete.
const (
	stoppedMarker = "\n\n[Stopped]"
	errorMarker   = "\n\n[Error: %s]"
)

// Result describes a finished turn. Transport and stream failures are not
// returned as errors: they are appended to the message and kept in Err.
type Result struct {
	ConversationID string
	Message        *Message
	Search         search.Outcome
	Stats          window.Stats
	Stopped        bool
	Err            error
}

// SendOption customizes one Send call.
type SendOption func(*sendOptions)

type sendOptions struct {
	events EventSink
}

// WithEvents also delivers the turn's events to sink.
func WithEvents(sink EventSink) SendOption {
	return func(o *sendOptions) {
		o.events = sink
	}
}

// Send appends a user turn with text to conversation id and streams the
// reply into a placeholder assistant message. An empty id targets the
// draft, then the active conversation, and creates a draft if neither
// exists. A draft becomes a stored conversation titled after text.
//
// Send blocks until the stream lands. It fails only when the turn could not
// start; see Result for how the turn ended.
func (s *Store) Send(ctx context.Context, id, text string, opts ...SendOption) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	conv, err := s.targetLocked(id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if _, busy := s.flights[conv.ID]; busy {
		s.mu.Unlock()
		return nil, ErrStreamInFlight
	}

	now := s.now()
	materialized := ""
	if s.draft != nil && s.draft.ID == conv.ID {
		conv.Title = TitleFrom(text)
		s.conversations[conv.ID] = conv
		s.activeID = conv.ID
		s.draft = nil
		materialized = conv.Title
	}

	prior := conv.History()
	user := &Message{ID: s.newID(), Role: aisdk.RoleUser, Content: text, CreatedAt: now}
	assistant := &Message{ID: s.newID(), Role: aisdk.RoleAssistant, CreatedAt: now}
	conv.Messages = append(conv.Messages, user, assistant)
	conv.UpdatedAt = now

	fctx, fl := newFlight(ctx, assistant.ID)
	s.flights[conv.ID] = fl
	view := window.Conversation{
		ProviderID:   conv.ProviderID,
		ModelID:      conv.ModelID,
		SystemPrompt: conv.SystemPrompt,
		Messages:     conv.History(),
	}
	convID := conv.ID
	s.mu.Unlock()

	defer s.land(convID, fl)

	logger := s.logger.With("method", "Send", "conversation", convID)
	emit := s.emitter(o.events)

	if err := s.persist(ctx, convID); err != nil {
		logger.Warn("failed to persist user turn", "error", err)
	}
	if materialized != "" {
		if err := s.persistPreferences(ctx); err != nil {
			logger.Warn("failed to persist preferences", "error", err)
		}
	}
	emit(&UserMessageEvent{
		BaseEvent: base(EventUserMessage, convID, now),
		MessageID: user.ID,
		Content:   text,
		Title:     materialized,
	})

	res := &Result{ConversationID: convID}
	streamErr := s.stream(fctx, convID, assistant.ID, text, prior, view, res, emit)
	s.finish(ctx, fctx, convID, assistant.ID, streamErr, res, emit)
	return res, nil
}

// targetLocked resolves the conversation a Send goes to.
func (s *Store) targetLocked(id string) (*Conversation, error) {
	if id == "" {
		switch {
		case s.draft != nil:
			return s.draft, nil
		case s.activeID != "":
			id = s.activeID
		default:
			now := s.now()
			s.draft = &Conversation{
				ID:           s.newID(),
				Title:        DefaultTitle,
				ProviderID:   s.selectedProvider,
				ModelID:      s.selectedModel,
				SystemPrompt: s.systemPrompt,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			return s.draft, nil
		}
	}
	if s.draft != nil && s.draft.ID == id {
		return s.draft, nil
	}
	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrConversationNotFound)
	}
	return conv, nil
}

// stream runs search, builds the request and folds the reply into msgID.
func (s *Store) stream(ctx context.Context, convID, msgID, text string, prior []*aisdk.Message, view window.Conversation, res *Result, emit func(ConversationEvent)) error {
	logger := s.logger.With("method", "stream", "conversation", convID)

	searchContext := ""
	if s.search != nil {
		res.Search = s.search.Run(ctx, text, prior)
		searchContext = res.Search.Context
		emit(&SearchCompleteEvent{
			BaseEvent: base(EventSearchComplete, convID, s.now()),
			State:     res.Search.State,
			Results:   len(res.Search.Results),
		})
	}

	req, stats := s.builder.Build(ctx, view, searchContext)
	res.Stats = stats

	if s.completer == nil {
		return errors.New("no completion client configured")
	}
	body, err := s.completer.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return err
	}
	defer body.Close()

	emit(&StreamStartedEvent{
		BaseEvent:  base(EventStreamStarted, convID, s.now()),
		MessageID:  msgID,
		Model:      req.Model,
		Compressed: stats.Compressed,
	})

	outcome, err := s.parser.Parse(ctx, body, func(d aisdk.Delta) {
		if !s.applyTo(convID, msgID, d) {
			return
		}
		emit(&DeltaAppliedEvent{
			BaseEvent: base(EventDeltaApplied, convID, s.now()),
			MessageID: msgID,
			Delta:     d,
		})
	})
	logger.Debug("stream ended", "outcome", outcome, "error", err)
	return err
}

// finish turns the stream result into final message state, persists it and
// reports it.
func (s *Store) finish(ctx, fctx context.Context, convID, msgID string, streamErr error, res *Result, emit func(ConversationEvent)) {
	logger := s.logger.With("method", "finish", "conversation", convID)
	cause := context.Cause(fctx)

	switch {
	case streamErr == nil:
	case errors.Is(cause, ErrDeleted):
		res.Err = ErrDeleted
		logger.Debug("stream cancelled by delete")
		emit(&StreamFailedEvent{BaseEvent: base(EventStreamFailed, convID, s.now()), Error: ErrDeleted.Error()})
		return
	case errors.Is(cause, errStopped) || errors.Is(streamErr, context.Canceled):
		res.Stopped = true
		s.applyTo(convID, msgID, aisdk.Delta{Content: stoppedMarker})
	default:
		res.Err = streamErr
		logger.Warn("stream failed", "error", streamErr)
		s.applyTo(convID, msgID, aisdk.Delta{Content: fmt.Sprintf(errorMarker, streamErr.Error())})
	}

	s.mu.Lock()
	if conv, ok := s.conversations[convID]; ok {
		conv.UpdatedAt = s.now()
		if last := conv.Last(); last != nil && last.ID == msgID {
			res.Message = last.clone()
		}
	}
	s.mu.Unlock()

	if err := s.persist(context.WithoutCancel(ctx), convID); err != nil {
		logger.Warn("failed to persist turn", "error", err)
	}

	now := s.now()
	switch {
	case res.Stopped:
		emit(&StreamFailedEvent{BaseEvent: base(EventStreamFailed, convID, now), Message: res.Message, Error: errStopped.Error(), Stopped: true})
	case res.Err != nil:
		emit(&StreamFailedEvent{BaseEvent: base(EventStreamFailed, convID, now), Message: res.Message, Error: res.Err.Error()})
	default:
		emit(&StreamFinishedEvent{BaseEvent: base(EventStreamFinished, convID, now), Message: res.Message})
	}
}

// land releases the single-flight slot of convID.
func (s *Store) land(convID string, fl *flight) {
	fl.cancel(nil)
	s.mu.Lock()
	if s.flights[convID] == fl {
		delete(s.flights, convID)
	}
	s.mu.Unlock()
	close(fl.done)
}

func (s *Store) emitter(extra EventSink) func(ConversationEvent) {
	return func(event ConversationEvent) {
		for _, sink := range []EventSink{s.events, extra} {
			if sink == nil {
				continue
			}
			if err := sink.Send(event); err != nil {
				s.logger.Debug("failed to send event", "type", event.GetType(), "error", err)
			}
		}
	}
}
