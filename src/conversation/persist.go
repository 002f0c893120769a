package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/elee1766/orbital/src/aisdk"
	"github.com/elee1766/orbital/src/storage"
)

// Load replaces in-memory state with what the repository holds. The draft
// is not persisted and is left untouched.
func (s *Store) Load(ctx context.Context) error {
	if s.repository == nil {
		return nil
	}
	records, err := s.repository.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load conversations: %w", err)
	}
	prefs, err := s.repository.LoadPreferences(ctx)
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = make(map[string]*Conversation, len(records))
	for _, rec := range records {
		s.conversations[rec.ID] = fromRecord(rec)
	}
	if prefs.SelectedModel != "" {
		s.selectedProvider = prefs.SelectedProvider
		s.selectedModel = prefs.SelectedModel
	}
	s.activeID = ""
	if _, ok := s.conversations[prefs.ActiveConversationID]; ok {
		s.activeID = prefs.ActiveConversationID
	}
	s.reasoningVisible = make(map[string]bool, len(prefs.ReasoningVisible))
	for id, visible := range prefs.ReasoningVisible {
		if visible {
			s.reasoningVisible[id] = true
		}
	}
	s.logger.Debug("loaded state", "conversations", len(s.conversations), "active", s.activeID)
	return nil
}

// persist writes conversation id if it still exists.
func (s *Store) persist(ctx context.Context, id string) error {
	if s.repository == nil {
		return nil
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	conv, ok := s.conversations[id]
	var rec *storage.Conversation
	if ok {
		rec = toRecord(conv)
	}
	s.mu.Unlock()
	if rec == nil {
		return nil
	}
	return s.repository.SaveConversation(ctx, rec)
}

func (s *Store) persistPreferences(ctx context.Context) error {
	if s.repository == nil {
		return nil
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	prefs := s.preferencesLocked()
	s.mu.Unlock()
	return s.repository.SavePreferences(ctx, prefs)
}

func (s *Store) preferencesLocked() *storage.Preferences {
	visible := make(map[string]bool, len(s.reasoningVisible))
	for id, v := range s.reasoningVisible {
		visible[id] = v
	}
	return &storage.Preferences{
		SelectedProvider:     s.selectedProvider,
		SelectedModel:        s.selectedModel,
		ActiveConversationID: s.activeID,
		ReasoningVisible:     visible,
	}
}

func toRecord(conv *Conversation) *storage.Conversation {
	rec := &storage.Conversation{
		ID:           conv.ID,
		Title:        conv.Title,
		ProviderID:   conv.ProviderID,
		ModelID:      conv.ModelID,
		SystemPrompt: conv.SystemPrompt,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
		Messages:     make([]*storage.Message, len(conv.Messages)),
	}
	for i, m := range conv.Messages {
		rec.Messages[i] = &storage.Message{
			ID:             m.ID,
			ConversationID: conv.ID,
			Position:       i,
			Role:           m.Role,
			Content:        m.Content,
			Reasoning:      m.Reasoning,
			Images:         append(storage.Images(nil), m.Images...),
			CreatedAt:      m.CreatedAt,
		}
	}
	return rec
}

func fromRecord(rec *storage.Conversation) *Conversation {
	conv := &Conversation{
		ID:           rec.ID,
		Title:        rec.Title,
		ProviderID:   rec.ProviderID,
		ModelID:      rec.ModelID,
		SystemPrompt: rec.SystemPrompt,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
		Messages:     make([]*Message, len(rec.Messages)),
	}
	for i, m := range rec.Messages {
		conv.Messages[i] = &Message{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			Reasoning: m.Reasoning,
			Images:    append([]aisdk.Image(nil), m.Images...),
			CreatedAt: m.CreatedAt,
		}
	}
	return conv
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
