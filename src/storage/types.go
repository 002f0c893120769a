package storage

import (
	"time"
)

// Conversation is a persisted conversation. Messages are loaded with the
// conversation and are not a column.
type Conversation struct {
	ID           string     `json:"id" db:"id"`
	Title        string     `json:"title" db:"title"`
	ProviderID   string     `json:"providerId" db:"provider_id"`
	ModelID      string     `json:"modelId" db:"model_id"`
	SystemPrompt string     `json:"systemPrompt,omitempty" db:"system_prompt"`
	Messages     []*Message `json:"messages" db:"-"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" db:"updated_at"`
}

// Message is a persisted message. Position orders messages within a
// conversation.
type Message struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"-" db:"conversation_id"`
	Position       int       `json:"-" db:"position"`
	Role           string    `json:"role" db:"role"`
	Content        string    `json:"content" db:"content"`
	Reasoning      string    `json:"reasoning,omitempty" db:"reasoning"`
	Images         Images    `json:"images,omitempty" db:"images"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

// Preferences is UI state that survives restarts.
type Preferences struct {
	SelectedProvider     string          `json:"selectedProvider,omitempty"`
	SelectedModel        string          `json:"selectedModel,omitempty"`
	ActiveConversationID string          `json:"activeConversationId,omitempty"`
	ReasoningVisible     map[string]bool `json:"reasoningVisible,omitempty"`
}

// Setting is one key/value row of the settings table.
type Setting struct {
	Key       string    `json:"key" db:"key"`
	Value     string    `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
