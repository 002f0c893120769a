package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
)

// ListConversations returns every conversation, most recently updated first.
func ListConversations(ctx context.Context, db sqlscan.Querier) ([]*Conversation, error) {
	query := `SELECT id, title, provider_id, model_id, system_prompt, created_at, updated_at FROM conversations ORDER BY updated_at DESC, id`
	var convs []*Conversation
	if err := sqlscan.Select(ctx, db, &convs, query); err != nil {
		return nil, err
	}
	return convs, nil
}

// GetConversationByID retrieves a conversation by its ID
func GetConversationByID(ctx context.Context, db sqlscan.Querier, conversationID string) (*Conversation, error) {
	query := `SELECT id, title, provider_id, model_id, system_prompt, created_at, updated_at FROM conversations WHERE id = ?`
	var conv Conversation
	err := sqlscan.Get(ctx, db, &conv, query, conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return &conv, nil
}

// UpsertConversation creates a conversation or updates its columns.
func UpsertConversation(ctx context.Context, db Execer, conversation *Conversation) error {
	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now().UTC()
	}
	if conversation.UpdatedAt.IsZero() {
		conversation.UpdatedAt = conversation.CreatedAt
	}

	query := `INSERT INTO conversations (id, title, provider_id, model_id, system_prompt, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET title = excluded.title, provider_id = excluded.provider_id, model_id = excluded.model_id, system_prompt = excluded.system_prompt, updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, query,
		conversation.ID,
		conversation.Title,
		conversation.ProviderID,
		conversation.ModelID,
		conversation.SystemPrompt,
		conversation.CreatedAt,
		conversation.UpdatedAt,
	)
	return err
}

// DeleteConversationByID removes a conversation and its messages.
func DeleteConversationByID(ctx context.Context, db Execer, conversationID string) (bool, error) {
	if _, err := db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return false, err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, conversationID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetMessagesByConversationID retrieves all messages for a conversation in order
func GetMessagesByConversationID(ctx context.Context, db sqlscan.Querier, conversationID string) ([]*Message, error) {
	query := `SELECT id, conversation_id, position, role, content, reasoning, images, created_at FROM messages WHERE conversation_id = ? ORDER BY position`
	var messages []*Message
	err := sqlscan.Select(ctx, db, &messages, query, conversationID)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// ReplaceMessages rewrites the message list of a conversation.
func ReplaceMessages(ctx context.Context, db Execer, conversationID string, messages []*Message) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return err
	}
	for i, message := range messages {
		message.ConversationID = conversationID
		message.Position = i
		if err := CreateMessage(ctx, db, message); err != nil {
			return err
		}
	}
	return nil
}

// CreateMessage creates a new message in the database
func CreateMessage(ctx context.Context, db Execer, message *Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO messages (id, conversation_id, position, role, content, reasoning, images, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		message.ID,
		message.ConversationID,
		message.Position,
		message.Role,
		message.Content,
		message.Reasoning,
		message.Images,
		message.CreatedAt,
	)
	return err
}

// GetSettings returns every setting row.
func GetSettings(ctx context.Context, db sqlscan.Querier) ([]Setting, error) {
	var settings []Setting
	if err := sqlscan.Select(ctx, db, &settings, `SELECT key, value, updated_at FROM settings`); err != nil {
		return nil, err
	}
	return settings, nil
}

// PutSetting creates or updates a setting.
func PutSetting(ctx context.Context, db Execer, setting Setting) error {
	if setting.UpdatedAt.IsZero() {
		setting.UpdatedAt = time.Now().UTC()
	}
	query := `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, query, setting.Key, setting.Value, setting.UpdatedAt)
	return err
}
