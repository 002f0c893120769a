package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/001_initial_schema.sql
var initialSchema string

//go:embed migrations/sqlite/002_message_reasoning_images.sql
var messageReasoningImages string

//go:embed migrations/sqlite/003_settings.sql
var settingsTable string

type DB struct {
	path string
	db   *sql.DB
}

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	store := &DB{path: path, db: db}

	// Run migrations
	if err := store.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (d *DB) DB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// runMigrations runs database migrations
func (d *DB) runMigrations() error {
	// Create migrations table if it doesn't exist
	createMigrationsTable := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	if _, err := d.db.Exec(createMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := d.appliedVersions()
	if err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, extractUpMigration(initialSchema)},
		{2, extractUpMigration(messageReasoningImages)},
		{3, extractUpMigration(settingsTable)},
	}

	for _, migration := range migrations {
		if applied[migration.version] {
			continue
		}

		tx, err := d.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if _, err := tx.Exec(migration.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", migration.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.version, err)
		}
	}

	return nil
}

func (d *DB) appliedVersions() (map[int]bool, error) {
	rows, err := d.db.Query("SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// extractUpMigration extracts the UP migration from goose format
func extractUpMigration(content string) string {
	lines := strings.Split(content, "\n")
	var upMigration []string
	inUp := false
	inStatement := false

	for _, line := range lines {
		if strings.Contains(line, "-- +goose Up") {
			inUp = true
			continue
		}
		if strings.Contains(line, "-- +goose Down") {
			break
		}
		if strings.Contains(line, "-- +goose StatementBegin") {
			inStatement = true
			continue
		}
		if strings.Contains(line, "-- +goose StatementEnd") {
			inStatement = false
			continue
		}
		if inUp && inStatement {
			upMigration = append(upMigration, line)
		}
	}

	return strings.Join(upMigration, "\n")
}

// SQLiteRepository is the default Repository.
type SQLiteRepository struct {
	db           *DB
	systemPrompt string
	logger       *slog.Logger
}

var _ Repository = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens the database at path and migrates it.
func NewSQLiteRepository(path, defaultSystemPrompt string, logger *slog.Logger) (*SQLiteRepository, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteRepository{
		db:           db,
		systemPrompt: defaultSystemPrompt,
		logger:       logger.With("component", "sqlite_repository"),
	}, nil
}

func (r *SQLiteRepository) ListConversations(ctx context.Context) ([]*Conversation, error) {
	convs, err := ListConversations(ctx, r.db.DB())
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	for _, conv := range convs {
		backfill(conv, r.systemPrompt)
	}
	return convs, nil
}

func (r *SQLiteRepository) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	conv, err := GetConversationByID(ctx, r.db.DB(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	conv.Messages, err = GetMessagesByConversationID(ctx, r.db.DB(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	backfill(conv, r.systemPrompt)
	return conv, nil
}

func (r *SQLiteRepository) LoadAll(ctx context.Context) ([]*Conversation, error) {
	convs, err := r.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	for _, conv := range convs {
		conv.Messages, err = GetMessagesByConversationID(ctx, r.db.DB(), conv.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get messages for %s: %w", conv.ID, err)
		}
	}
	return convs, nil
}

func (r *SQLiteRepository) SaveConversation(ctx context.Context, conv *Conversation) error {
	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := UpsertConversation(ctx, tx, conv); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	if err := ReplaceMessages(ctx, tx, conv.ID, conv.Messages); err != nil {
		return fmt.Errorf("failed to save messages: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit conversation: %w", err)
	}
	r.logger.Debug("saved conversation", "id", conv.ID, "messages", len(conv.Messages))
	return nil
}

func (r *SQLiteRepository) DeleteConversation(ctx context.Context, id string) error {
	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	found, err := DeleteConversationByID(ctx, tx, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if !found {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

func (r *SQLiteRepository) LoadPreferences(ctx context.Context) (*Preferences, error) {
	settings, err := GetSettings(ctx, r.db.DB())
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return preferencesFromSettings(settings)
}

func (r *SQLiteRepository) SavePreferences(ctx context.Context, prefs *Preferences) error {
	settings, err := preferencesToSettings(prefs)
	if err != nil {
		return err
	}
	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	for _, setting := range settings {
		if err := PutSetting(ctx, tx, setting); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", setting.Key, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
