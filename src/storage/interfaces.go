package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/georgysavva/scany/v2/sqlscan"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("not found")

// Repository persists conversations and preferences. Every backend
// backfills an empty system prompt with the configured default on load.
type Repository interface {
	// ListConversations returns conversations without messages, most
	// recently updated first.
	ListConversations(ctx context.Context) ([]*Conversation, error)
	// GetConversation returns a conversation with its messages.
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	// LoadAll returns every conversation with its messages.
	LoadAll(ctx context.Context) ([]*Conversation, error)
	// SaveConversation inserts or replaces a conversation and its messages.
	SaveConversation(ctx context.Context, conv *Conversation) error
	DeleteConversation(ctx context.Context, id string) error
	LoadPreferences(ctx context.Context) (*Preferences, error)
	SavePreferences(ctx context.Context, prefs *Preferences) error
	Close() error
}

// Execer is an interface for executing SQL statements
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// ExecQuerier combines both Execer and sqlscan.Querier interfaces
// for operations that need both SELECT and INSERT/UPDATE/DELETE capabilities
type ExecQuerier interface {
	Execer
	sqlscan.Querier
}
