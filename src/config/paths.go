package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// StoragePaths contains paths for application storage
type StoragePaths struct {
	DatabasePath string
	BoltPath     string
	LogDir       string
}

// GetDefaultStoragePaths returns default storage paths using XDG base directories
func GetDefaultStoragePaths() StoragePaths {
	// XDG_STATE_HOME holds runtime state data
	dir := filepath.Join(xdg.StateHome, "orbital")

	return StoragePaths{
		DatabasePath: filepath.Join(dir, "conversations.db"),
		BoltPath:     filepath.Join(dir, "conversations.bolt"),
		LogDir:       filepath.Join(dir, "logs"),
	}
}

// StoragePath returns the database path for the configured driver.
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	paths := GetDefaultStoragePaths()
	if c.Storage.Driver == "bolt" {
		return paths.BoltPath
	}
	return paths.DatabasePath
}
