package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultFirecrawlURL = "https://api.firecrawl.dev/v2"

	defaultFirecrawlTimeout = 30 * time.Second
)

// ErrSearchFailed is returned when the search API reports success=false.
var ErrSearchFailed = errors.New("search failed")

// FirecrawlConfig configures a FirecrawlClient.
type FirecrawlConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RequestsPerMinute limits outbound searches. Zero disables limiting.
	RequestsPerMinute int
	// DefaultLimit applies to requests without a limit. Defaults to 5.
	DefaultLimit int
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// FirecrawlClient runs searches against the Firecrawl search API.
type FirecrawlClient struct {
	baseURL      string
	apiKey       string
	defaultLimit int
	httpClient   *http.Client
	limiter      *rate.Limiter
	logger       *slog.Logger
}

var _ Searcher = (*FirecrawlClient)(nil)

// NewFirecrawlClient creates a FirecrawlClient.
func NewFirecrawlClient(cfg FirecrawlConfig) *FirecrawlClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultFirecrawlURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFirecrawlTimeout
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 5
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), MaxSearches)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FirecrawlClient{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		defaultLimit: cfg.DefaultLimit,
		httpClient:   httpClient,
		limiter:      limiter,
		logger:       logger.With("component", "firecrawl_client"),
	}
}

type firecrawlRequest struct {
	Query         string                  `json:"query"`
	Limit         int                     `json:"limit"`
	Location      string                  `json:"location,omitempty"`
	Sources       []string                `json:"sources,omitempty"`
	Categories    []string                `json:"categories,omitempty"`
	TBS           string                  `json:"tbs,omitempty"`
	ScrapeOptions *firecrawlScrapeOptions `json:"scrapeOptions,omitempty"`
}

type firecrawlScrapeOptions struct {
	Formats []string `json:"formats"`
}

type firecrawlResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    struct {
		Web []Result `json:"web"`
	} `json:"data"`
}

// Search runs req and returns the web results.
func (f *FirecrawlClient) Search(ctx context.Context, req Request) ([]Result, error) {
	logger := f.logger.With("method", "Search", "query", req.Query)

	payload := firecrawlRequest{
		Query:      req.Query,
		Limit:      req.Limit,
		Location:   req.Location,
		Sources:    req.Sources,
		Categories: req.Categories,
		TBS:        req.TimeWindow,
	}
	if payload.Limit <= 0 {
		payload.Limit = f.defaultLimit
	}
	if req.ScrapeContent {
		payload.ScrapeOptions = &firecrawlScrapeOptions{Formats: []string{"markdown"}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if f.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("search API returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	var result firecrawlResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	if !result.Success {
		if result.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrSearchFailed, result.Error)
		}
		return nil, ErrSearchFailed
	}

	logger.Debug("search complete", "results", len(result.Data.Web))
	return result.Data.Web, nil
}
