// Package storage persists conversations and UI preferences in SQLite
// (default) or bbolt.
package storage

import (
	"fmt"
	"log/slog"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
)

// Config selects and configures a backend.
type Config struct {
	Driver string
	Path   string
	// DefaultSystemPrompt backfills conversations stored without one.
	DefaultSystemPrompt string
	Logger              *slog.Logger
}

// New opens the configured backend.
func New(cfg Config) (Repository, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return NewSQLiteRepository(cfg.Path, cfg.DefaultSystemPrompt, cfg.Logger)
	case DriverBolt:
		return NewBoltStore(cfg.Path, cfg.DefaultSystemPrompt, cfg.Logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
