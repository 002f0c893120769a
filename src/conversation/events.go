package conversation

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/elee1766/orbital/src/aisdk"
	"github.com/elee1766/orbital/src/search"
)

// EventType represents the type of conversation event
type EventType string

const (
	EventUserMessage    EventType = "user_message"
	EventSearchComplete EventType = "search_complete"
	EventStreamStarted  EventType = "stream_started"
	EventDeltaApplied   EventType = "delta_applied"
	EventStreamFinished EventType = "stream_finished"
	EventStreamFailed   EventType = "stream_failed"
)

// ConversationEvent is the base interface for all conversation events
type ConversationEvent interface {
	GetType() EventType
	GetTimestamp() time.Time
	GetConversationID() string
}

// BaseEvent contains common fields for all events
type BaseEvent struct {
	Type           EventType `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversation_id"`
}

func (e BaseEvent) GetType() EventType        { return e.Type }
func (e BaseEvent) GetTimestamp() time.Time   { return e.Timestamp }
func (e BaseEvent) GetConversationID() string { return e.ConversationID }

// UserMessageEvent is sent when a user turn is appended.
type UserMessageEvent struct {
	BaseEvent
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
	// Title is set when the turn materialized a draft.
	Title string `json:"title,omitempty"`
}

// SearchCompleteEvent reports how the search step ended.
type SearchCompleteEvent struct {
	BaseEvent
	State   search.State `json:"state"`
	Results int          `json:"results"`
}

// StreamStartedEvent is sent once the completion stream is open.
type StreamStartedEvent struct {
	BaseEvent
	MessageID  string `json:"message_id"`
	Model      string `json:"model"`
	Compressed bool   `json:"compressed"`
}

// DeltaAppliedEvent carries one delta folded into the assistant message.
type DeltaAppliedEvent struct {
	BaseEvent
	MessageID string      `json:"message_id"`
	Delta     aisdk.Delta `json:"delta"`
}

// StreamFinishedEvent is sent when the stream completed normally.
type StreamFinishedEvent struct {
	BaseEvent
	Message *Message `json:"message"`
}

// StreamFailedEvent is sent when the stream failed or was stopped. The
// failure is already part of the message content.
type StreamFailedEvent struct {
	BaseEvent
	Message *Message `json:"message,omitempty"`
	Error   string   `json:"error"`
	Stopped bool     `json:"stopped"`
}

// EventSink is the interface for handling conversation events
type EventSink interface {
	// Send sends an event to the sink
	Send(event ConversationEvent) error

	// Close closes the event sink
	Close() error
}

// EventProcessor processes conversation events
type EventProcessor interface {
	// Process handles a single event
	Process(event ConversationEvent) error

	// Close cleans up any resources
	Close() error
}

// ProcessorFunc adapts a function to EventProcessor.
type ProcessorFunc func(event ConversationEvent) error

func (f ProcessorFunc) Process(event ConversationEvent) error { return f(event) }
func (f ProcessorFunc) Close() error                          { return nil }

// SyncEventSink hands events to its processors on the sender's goroutine.
type SyncEventSink struct {
	processors []EventProcessor
	logger     *slog.Logger
}

// NewSyncEventSink creates a synchronous sink.
func NewSyncEventSink(logger *slog.Logger, processors ...EventProcessor) *SyncEventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncEventSink{processors: processors, logger: logger}
}

func (s *SyncEventSink) Send(event ConversationEvent) error {
	for _, p := range s.processors {
		if err := p.Process(event); err != nil {
			s.logger.Warn("event processor failed", "type", event.GetType(), "error", err)
		}
	}
	return nil
}

func (s *SyncEventSink) Close() error {
	for _, p := range s.processors {
		if err := p.Close(); err != nil {
			s.logger.Warn("error closing processor", "error", err)
		}
	}
	return nil
}

// ChannelEventSink implements EventSink using Go channels
type ChannelEventSink struct {
	events     chan ConversationEvent
	processors []EventProcessor
	done       chan struct{}
	logger     *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewChannelEventSink creates a new channel-based event sink. Events are
// processed in the order they were sent.
func NewChannelEventSink(bufferSize int, logger *slog.Logger, processors ...EventProcessor) *ChannelEventSink {
	if logger == nil {
		logger = slog.Default()
	}
	sink := &ChannelEventSink{
		events:     make(chan ConversationEvent, bufferSize),
		processors: processors,
		done:       make(chan struct{}),
		logger:     logger,
	}

	go sink.processEvents()

	return sink
}

// Send sends an event to the sink
func (s *ChannelEventSink) Send(event ConversationEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("event sink is closed")
	}
	s.events <- event
	return nil
}

// Close drains pending events and closes the processors.
func (s *ChannelEventSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()
	<-s.done

	for _, p := range s.processors {
		if err := p.Close(); err != nil {
			s.logger.Warn("error closing processor", "error", err)
		}
	}

	return nil
}

func (s *ChannelEventSink) processEvents() {
	defer close(s.done)

	for event := range s.events {
		for _, processor := range s.processors {
			if err := processor.Process(event); err != nil {
				s.logger.Warn("event processor failed", "type", event.GetType(), "error", err)
			}
		}
	}
}

func base(t EventType, conversationID string, now time.Time) BaseEvent {
	return BaseEvent{Type: t, Timestamp: now, ConversationID: conversationID}
}
