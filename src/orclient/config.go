package orclient

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds configuration for the OpenRouter client
type Config struct {
	APIKey     string        // OpenRouter API key
	BaseURL    string        // Base URL for OpenRouter API
	Logger     *slog.Logger  // Logger for debugging
	Timeout    time.Duration // HTTP timeout for non-streaming calls
	RetryCount int           // Number of attempts for failed requests
	RetryDelay time.Duration // Base delay between retries
	SiteURL    string        // Site URL for ranking
	SiteName   string        // Site name for ranking
	// RequestsPerMinute limits outbound requests. Zero disables limiting.
	RequestsPerMinute int
	// Burst is the limiter burst size. Defaults to 1.
	Burst int
	// ModelListTTL is how long the model list is reused.
	ModelListTTL time.Duration
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}
