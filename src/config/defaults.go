package config

import (
	"time"
)

// DefaultConfig returns a default configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		API: APIConfig{
			BaseURL:      "https://openrouter.ai/api/v1",
			APIKeyEnvVar: "OPENROUTER_API_KEY",
			Timeout:      30 * time.Second,
			Retry: RetryConfig{
				MaxRetries:   3,
				InitialDelay: 1 * time.Second,
			},
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
			},
			SiteName: "orbital",
		},

		Chat: ChatConfig{
			Provider:     "auto",
			Model:        "openrouter/auto",
			Temperature:  0.7,
			HistoryLimit: 10,
		},

		Search: SearchConfig{
			Enabled:           true,
			BaseURL:           "https://api.firecrawl.dev/v2",
			ClassifierModel:   "google/gemini-2.5-flash-lite-preview-09-2025",
			PlannerModel:      "google/gemini-2.5-flash",
			MaxSearches:       2,
			ResultLimit:       3,
			RequestsPerMinute: 30,
			ScrapeFallback:    true,
		},

		Capability: CapabilityConfig{
			TTL: 5 * time.Minute,
		},

		Storage: StorageConfig{
			Driver: "sqlite",
		},

		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}
