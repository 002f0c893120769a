package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

// Loader handles loading and merging configurations from multiple sources
type Loader struct {
	precedence ConfigPrecedence
	validator  *Validator
	getenv     func(string) string
}

// NewLoader creates a new configuration loader
func NewLoader(precedence ConfigPrecedence) *Loader {
	return &Loader{
		precedence: precedence,
		validator:  NewValidator(),
		getenv:     os.Getenv,
	}
}

// WithEnv replaces the environment lookup, mostly for tests.
func (l *Loader) WithEnv(getenv func(string) string) *Loader {
	l.getenv = getenv
	return l
}

// Load loads configuration from all sources and merges them
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	sources := []struct {
		path   string
		source ConfigSource
	}{
		{l.precedence.SystemConfig, SourceSystem},
		{l.precedence.UserConfig, SourceUser},
		{l.precedence.ProjectConfig, SourceProject},
		{l.precedence.LocalConfig, SourceLocal},
	}

	for _, src := range sources {
		if src.path == "" {
			continue
		}
		// Each file overlays only the fields it sets.
		if err := l.loadFile(src.path, config); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s config from %s: %w", src.source, src.path, err)
		}
	}

	getenv, err := l.environment()
	if err != nil {
		return nil, err
	}
	if l.precedence.EnvironmentPrefix != "" {
		l.applyEnvironmentOverrides(config, getenv)
	}
	if config.API.APIKey == "" {
		config.API.APIKey = config.API.ResolveAPIKey(getenv)
	}

	if err := l.validator.Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// environment layers the optional .env file under the process environment.
func (l *Loader) environment() (func(string) string, error) {
	if l.precedence.DotEnv == "" {
		return l.getenv, nil
	}
	vars, err := godotenv.Read(l.precedence.DotEnv)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return l.getenv, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", l.precedence.DotEnv, err)
	}
	return func(key string) string {
		if v := l.getenv(key); v != "" {
			return v
		}
		return vars[key]
	}, nil
}

func (l *Loader) loadFile(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

// SaveFile saves configuration to a file
func (l *Loader) SaveFile(config *Config, path string) error {
	if err := l.validator.Validate(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600 since the file may carry API keys
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides applies environment variable overrides to config
func (l *Loader) applyEnvironmentOverrides(config *Config, getenv func(string) string) {
	prefix := l.precedence.EnvironmentPrefix + "_"

	if apiKey := getenv(prefix + "API_KEY"); apiKey != "" {
		config.API.APIKey = apiKey
	}
	if config.API.APIKey == "" {
		config.API.APIKey = getenv("OPENROUTER_API_KEY")
	}
	if baseURL := getenv(prefix + "BASE_URL"); baseURL != "" {
		config.API.BaseURL = baseURL
	}

	if model := getenv(prefix + "MODEL"); model != "" {
		config.Chat.Model = model
	}
	if provider := getenv(prefix + "PROVIDER"); provider != "" {
		config.Chat.Provider = provider
	}
	if temp := getenv(prefix + "TEMPERATURE"); temp != "" {
		if v, err := strconv.ParseFloat(temp, 64); err == nil {
			config.Chat.Temperature = v
		}
	}

	if key := getenv(prefix + "SEARCH_API_KEY"); key != "" {
		config.Search.APIKey = key
	}
	if config.Search.APIKey == "" {
		config.Search.APIKey = getenv("FIRECRAWL_API_KEY")
	}
	if enabled := getenv(prefix + "SEARCH"); enabled != "" {
		if v, err := strconv.ParseBool(enabled); err == nil {
			config.Search.Enabled = v
		}
	}

	if ttl := getenv(prefix + "CAPABILITY_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Capability.TTL = d
		}
	}

	if driver := getenv(prefix + "STORAGE_DRIVER"); driver != "" {
		config.Storage.Driver = strings.ToLower(driver)
	}
	if path := getenv(prefix + "STORAGE_PATH"); path != "" {
		config.Storage.Path = path
	}

	if level := getenv(prefix + "LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}
}

// GetConfigPaths returns the configuration file paths to check
func GetConfigPaths() ConfigPrecedence {
	userConfigPath := filepath.Join(xdg.ConfigHome, "orbital", "config.json")

	systemConfigPath := "/etc/orbital/config.json"
	if runtime.GOOS == "windows" {
		systemConfigPath = filepath.Join(os.Getenv("PROGRAMDATA"), "orbital", "config.json")
	}

	return ConfigPrecedence{
		SystemConfig:      systemConfigPath,
		UserConfig:        userConfigPath,
		ProjectConfig:     filepath.Join(".orbital", "config.json"),
		LocalConfig:       filepath.Join(".orbital", "config.local.json"),
		DotEnv:            ".env",
		EnvironmentPrefix: "ORBITAL",
	}
}

// FindConfigFile searches for a configuration file in standard locations
func FindConfigFile() (string, error) {
	paths := GetConfigPaths()

	checkPaths := []string{
		paths.LocalConfig,
		paths.ProjectConfig,
		paths.UserConfig,
		paths.SystemConfig,
	}

	for _, path := range checkPaths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found")
}
