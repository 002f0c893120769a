package config

import (
	"time"
)

// Config represents the complete configuration for orbital
type Config struct {
	// Version of the configuration format
	Version string `json:"version"`

	// API configuration for the completion relay
	API APIConfig `json:"api"`

	// Chat defaults applied to new conversations
	Chat ChatConfig `json:"chat"`

	// Search configuration
	Search SearchConfig `json:"search"`

	// Capability lookups
	Capability CapabilityConfig `json:"capability"`

	// Storage backend
	Storage StorageConfig `json:"storage"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`
}

// APIConfig defines the OpenRouter-compatible endpoint
type APIConfig struct {
	// BaseURL overrides the API endpoint
	BaseURL string `json:"base_url,omitempty" validate:"omitempty,url"`

	// APIKey is the API key. Prefer APIKeyEnvVar.
	APIKey string `json:"api_key,omitempty"`

	// APIKeyEnvVar names the environment variable holding the key
	APIKeyEnvVar string `json:"api_key_env_var,omitempty"`

	// Timeout for non-streaming requests
	Timeout time.Duration `json:"timeout,omitempty" validate:"min=0"`

	// Retry for API request retries
	Retry RetryConfig `json:"retry,omitempty"`

	// RateLimit for outbound requests
	RateLimit RateLimitConfig `json:"rate_limit,omitempty"`

	// SiteURL and SiteName are sent as ranking headers
	SiteURL  string `json:"site_url,omitempty"`
	SiteName string `json:"site_name,omitempty"`
}

// RetryConfig defines retry behavior
type RetryConfig struct {
	MaxRetries   int           `json:"max_retries" validate:"min=0,max=10"`
	InitialDelay time.Duration `json:"initial_delay" validate:"min=0"`
}

// RateLimitConfig defines client-side rate limits
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" validate:"min=0"`
	BurstSize         int `json:"burst_size" validate:"min=0"`
}

// ChatConfig holds conversation defaults
type ChatConfig struct {
	Provider     string  `json:"provider,omitempty"`
	Model        string  `json:"model,omitempty"`
	Temperature  float64 `json:"temperature" validate:"min=0,max=2"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	HistoryLimit int     `json:"history_limit" validate:"min=1,max=100"`
}

// SearchConfig controls the web search stage that runs before a completion
type SearchConfig struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"base_url,omitempty" validate:"omitempty,url"`
	APIKey  string `json:"api_key,omitempty"`

	// ClassifierModel decides whether a turn needs search
	ClassifierModel string `json:"classifier_model,omitempty"`

	// PlannerModel turns the message into search queries
	PlannerModel string `json:"planner_model,omitempty"`

	MaxSearches       int  `json:"max_searches" validate:"min=0,max=5"`
	ResultLimit       int  `json:"result_limit" validate:"min=0,max=10"`
	RequestsPerMinute int  `json:"requests_per_minute" validate:"min=0"`
	ScrapeFallback    bool `json:"scrape_fallback"`
}

// CapabilityConfig controls model capability caching
type CapabilityConfig struct {
	TTL time.Duration `json:"ttl" validate:"min=0"`
}

// StorageConfig selects the conversation store backend
type StorageConfig struct {
	Driver string `json:"driver,omitempty" validate:"storage_driver"`

	// Path to the database file. Empty uses the XDG state directory.
	Path string `json:"path,omitempty"`
}

// LoggingConfig defines logging settings
type LoggingConfig struct {
	Level  string `json:"level,omitempty" validate:"log_level"`
	Format string `json:"format,omitempty" validate:"log_format"`
}

// ConfigPrecedence defines the order of configuration loading
type ConfigPrecedence struct {
	// SystemConfig path
	SystemConfig string

	// UserConfig path
	UserConfig string

	// ProjectConfig path
	ProjectConfig string

	// LocalConfig path (git-ignored)
	LocalConfig string

	// DotEnv is an optional .env file loaded before environment overrides
	DotEnv string

	// EnvironmentPrefix for environment variables
	EnvironmentPrefix string
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ConfigSource indicates where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceSystem      ConfigSource = "system"
	SourceUser        ConfigSource = "user"
	SourceProject     ConfigSource = "project"
	SourceLocal       ConfigSource = "local"
	SourceEnvironment ConfigSource = "environment"
	SourceCLI         ConfigSource = "cli"
)

// ResolveAPIKey returns the configured key, falling back to APIKeyEnvVar.
func (c APIConfig) ResolveAPIKey(getenv func(string) string) string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnvVar != "" && getenv != nil {
		return getenv(c.APIKeyEnvVar)
	}
	return ""
}
