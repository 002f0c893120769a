// Package conversation is the stateful core of the chat engine: it owns
// conversations and their messages, folds stream deltas into the trailing
// assistant message and keeps at most one stream open per conversation.
package conversation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/elee1766/orbital/src/aisdk"
	"github.com/elee1766/orbital/src/search"
	"github.com/elee1766/orbital/src/storage"
	"github.com/elee1766/orbital/src/stream"
	"github.com/elee1766/orbital/src/window"
)

const (
	DefaultProviderID = "auto"
	DefaultModelID    = "openrouter/auto"
)

// Searcher augments a turn with retrieval context.
type Searcher interface {
	Run(ctx context.Context, userMessage string, history []*aisdk.Message) search.Outcome
}

// ContextBuilder assembles the outbound request.
type ContextBuilder interface {
	Build(ctx context.Context, conv window.Conversation, searchContext string) (*aisdk.ChatCompletionRequest, window.Stats)
}

// StreamParser turns a completion stream into deltas.
type StreamParser interface {
	Parse(ctx context.Context, r io.Reader, fn stream.DeltaFunc) (stream.Outcome, error)
}

// Config configures a Store.
type Config struct {
	Completer aisdk.StreamCompleter
	// Search is optional; without it turns are never augmented.
	Search  Searcher
	Builder ContextBuilder
	Parser  StreamParser
	// Repository is optional; without it state lives in memory only.
	Repository storage.Repository
	Events     EventSink

	DefaultProviderID string
	DefaultModelID    string
	SystemPrompt      string

	Now    func() time.Time
	NewID  func() string
	Logger *slog.Logger
}

// Store owns every conversation. All methods are safe for concurrent use.
type Store struct {
	completer  aisdk.StreamCompleter
	search     Searcher
	builder    ContextBuilder
	parser     StreamParser
	repository storage.Repository
	events     EventSink

	systemPrompt string
	now          func() time.Time
	newID        func() string
	logger       *slog.Logger

	mu               sync.Mutex
	conversations    map[string]*Conversation
	draft            *Conversation
	activeID         string
	flights          map[string]*flight
	selectedProvider string
	selectedModel    string
	reasoningVisible map[string]bool

	// persistMu orders repository writes so the last write wins.
	persistMu sync.Mutex
}

// NewStore creates a Store.
func NewStore(cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Builder == nil {
		cfg.Builder = window.NewBuilder(window.Config{DefaultSystemPrompt: cfg.SystemPrompt, Logger: logger})
	}
	if cfg.Parser == nil {
		cfg.Parser = stream.NewParser(stream.Config{Logger: logger})
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = window.DefaultSystemPrompt
	}
	if cfg.DefaultProviderID == "" {
		cfg.DefaultProviderID = DefaultProviderID
	}
	if cfg.DefaultModelID == "" {
		cfg.DefaultModelID = DefaultModelID
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Store{
		completer:        cfg.Completer,
		search:           cfg.Search,
		builder:          cfg.Builder,
		parser:           cfg.Parser,
		repository:       cfg.Repository,
		events:           cfg.Events,
		systemPrompt:     cfg.SystemPrompt,
		now:              cfg.Now,
		newID:            cfg.NewID,
		logger:           logger.With("component", "conversation_store"),
		conversations:    make(map[string]*Conversation),
		flights:          make(map[string]*flight),
		selectedProvider: cfg.DefaultProviderID,
		selectedModel:    cfg.DefaultModelID,
		reasoningVisible: make(map[string]bool),
	}
}

// NewChat replaces the draft with a fresh one and clears the active
// conversation. Empty ids use the selected provider and model.
func (s *Store) NewChat(providerID, modelID string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if providerID == "" {
		providerID = s.selectedProvider
	}
	if modelID == "" {
		modelID = s.selectedModel
	}
	now := s.now()
	s.draft = &Conversation{
		ID:           s.newID(),
		Title:        DefaultTitle,
		ProviderID:   providerID,
		ModelID:      modelID,
		SystemPrompt: s.systemPrompt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.activeID = ""
	return s.draft.Clone()
}

// Draft returns the draft conversation, or nil.
func (s *Store) Draft() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return nil
	}
	return s.draft.Clone()
}

// ActiveID returns the id of the active conversation, or "".
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// SetActive makes id the active conversation and discards the draft.
func (s *Store) SetActive(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.conversations[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", id, ErrConversationNotFound)
	}
	s.activeID = id
	s.draft = nil
	s.mu.Unlock()
	return s.persistPreferences(ctx)
}

// ClearActive clears both the active conversation and the draft.
func (s *Store) ClearActive(ctx context.Context) error {
	s.mu.Lock()
	s.activeID = ""
	s.draft = nil
	s.mu.Unlock()
	return s.persistPreferences(ctx)
}

// Get returns a copy of conversation id.
func (s *Store) Get(id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrConversationNotFound)
	}
	return conv.Clone(), nil
}

// List returns copies of every conversation, most recently updated first.
func (s *Store) List() []*Conversation {
	s.mu.Lock()
	out := make([]*Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, conv.Clone())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// State reports the lifecycle state of id. Unknown ids are reported as
// deleted.
func (s *Store) State(id string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft != nil && s.draft.ID == id {
		return StateDraft
	}
	if _, ok := s.conversations[id]; !ok {
		return StateDeleted
	}
	if _, ok := s.flights[id]; ok {
		return StateStreaming
	}
	return StateIdle
}

// ApplyDelta folds d into the trailing assistant message of conversation
// id. Content and reasoning are appended; images already present by URL
// are ignored.
func (s *Store) ApplyDelta(id string, d aisdk.Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrConversationNotFound)
	}
	last := conv.Last()
	if last == nil || last.Role != aisdk.RoleAssistant {
		return fmt.Errorf("conversation %s has no trailing assistant message", id)
	}
	applyDelta(last, d)
	return nil
}

// applyTo folds d into message msgID if it is still the trailing message
// of conversation id.
func (s *Store) applyTo(id, msgID string, d aisdk.Delta) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return false
	}
	last := conv.Last()
	if last == nil || last.ID != msgID {
		return false
	}
	applyDelta(last, d)
	return true
}

// Stop cancels the open stream of conversation id.
func (s *Store) Stop(id string) error {
	s.mu.Lock()
	fl, ok := s.flights[id]
	s.mu.Unlock()
	if !ok {
		return ErrNotStreaming
	}
	fl.cancel(errStopped)
	return nil
}

// Wait blocks until the open stream of conversation id, if any, has landed.
func (s *Store) Wait(ctx context.Context, id string) error {
	s.mu.Lock()
	fl, ok := s.flights[id]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-fl.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops every open stream and waits until each has landed or ctx
// is done.
func (s *Store) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	flights := make([]*flight, 0, len(s.flights))
	for _, fl := range s.flights {
		fl.cancel(errStopped)
		flights = append(flights, fl)
	}
	s.mu.Unlock()

	for _, fl := range flights {
		select {
		case <-fl.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Rename sets the title of conversation id.
func (s *Store) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title is empty")
	}
	s.mu.Lock()
	conv, ok := s.conversations[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", id, ErrConversationNotFound)
	}
	conv.Title = title
	conv.UpdatedAt = s.now()
	s.mu.Unlock()
	return s.persist(ctx, id)
}

// Delete removes conversation id, cancelling its stream if one is open.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	conv, ok := s.conversations[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", id, ErrConversationNotFound)
	}
	if fl, busy := s.flights[id]; busy {
		fl.cancel(ErrDeleted)
	}
	delete(s.conversations, id)
	for _, m := range conv.Messages {
		delete(s.reasoningVisible, m.ID)
	}
	if s.activeID == id {
		s.activeID = ""
	}
	prefs := s.preferencesLocked()
	s.mu.Unlock()

	if s.repository == nil {
		return nil
	}
	if err := s.repository.DeleteConversation(ctx, id); err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if err := s.repository.SavePreferences(ctx, prefs); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// SetModel switches the provider and model of conversation id. An empty
// id targets the draft.
func (s *Store) SetModel(ctx context.Context, id, providerID, modelID string) error {
	if modelID == "" {
		return fmt.Errorf("model is required")
	}
	s.mu.Lock()
	if id == "" || (s.draft != nil && s.draft.ID == id) {
		if s.draft == nil {
			s.mu.Unlock()
			return ErrNoDraft
		}
		s.draft.ProviderID = providerID
		s.draft.ModelID = modelID
		s.mu.Unlock()
		return nil
	}
	conv, ok := s.conversations[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", id, ErrConversationNotFound)
	}
	conv.ProviderID = providerID
	conv.ModelID = modelID
	conv.UpdatedAt = s.now()
	s.mu.Unlock()
	return s.persist(ctx, id)
}

// SetSelectedModel sets the provider and model used for new chats.
func (s *Store) SetSelectedModel(ctx context.Context, providerID, modelID string) error {
	s.mu.Lock()
	s.selectedProvider = providerID
	s.selectedModel = modelID
	s.mu.Unlock()
	return s.persistPreferences(ctx)
}

// SelectedModel returns the provider and model used for new chats.
func (s *Store) SelectedModel() (providerID, modelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedProvider, s.selectedModel
}

// ToggleReasoning flips whether the reasoning of message msgID is shown
// and returns the new value.
func (s *Store) ToggleReasoning(ctx context.Context, msgID string) (bool, error) {
	s.mu.Lock()
	visible := !s.reasoningVisible[msgID]
	if visible {
		s.reasoningVisible[msgID] = true
	} else {
		delete(s.reasoningVisible, msgID)
	}
	s.mu.Unlock()
	return visible, s.persistPreferences(ctx)
}

// ReasoningVisible reports whether the reasoning of msgID is shown.
func (s *Store) ReasoningVisible(msgID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reasoningVisible[msgID]
}
