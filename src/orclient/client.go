// Package orclient is an HTTP client for OpenRouter-compatible chat
// completion APIs.
package orclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/elee1766/orbital/src/aisdk"
)

const (
	defaultBaseURL      = "https://openrouter.ai/api/v1"
	defaultTimeout      = 30 * time.Second
	defaultModelListTTL = time.Minute
)

var _ aisdk.Provider = (*Client)(nil)

// Client is the OpenRouter API client.
type Client struct {
	config       Config
	httpClient   *http.Client
	streamClient *http.Client
	limiter      *rate.Limiter
	logger       *slog.Logger
	modelCache   *ModelCache
}

// NewClient creates a new OpenRouter API client.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.RetryCount == 0 {
		config.RetryCount = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.ModelListTTL == 0 {
		config.ModelListTTL = defaultModelListTTL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	// Streams stay open far longer than any sane request timeout, so they
	// share the transport but rely on the context for cancellation.
	streamClient := &http.Client{Transport: httpClient.Transport}
	httpClient = &http.Client{
		Transport: httpClient.Transport,
		Timeout:   config.Timeout,
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RequestsPerMinute > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), burst)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "openrouter_client")

	client := &Client{
		config:       config,
		httpClient:   httpClient,
		streamClient: streamClient,
		limiter:      limiter,
		logger:       logger,
	}
	client.modelCache = NewModelCache(client, config.ModelListTTL)

	return client
}

// CreateChatCompletion sends a non-streaming chat completion request.
func (c *Client) CreateChatCompletion(ctx context.Context, req *aisdk.ChatCompletionRequest) (*aisdk.ChatCompletionResponse, error) {
	logger := c.logger.With("method", "CreateChatCompletion", "model", req.Model)
	logger.Debug("sending chat completion request")

	body, err := c.marshalRequest(ctx, logger, req, false)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequestWithRetry(ctx, c.httpClient, http.MethodPost, "/chat/completions", body)
	if err != nil {
		logger.Error("request failed", "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	var result aisdk.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		logger.Error("failed to decode response", "error", err)
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	logger.Debug("chat completion successful", "usage_total", result.Usage.TotalTokens)
	return &result, nil
}

// CreateChatCompletionStream opens a streaming chat completion and returns
// the server-sent-event body. The caller must close it. Cancelling ctx
// aborts the stream.
func (c *Client) CreateChatCompletionStream(ctx context.Context, req *aisdk.ChatCompletionRequest) (io.ReadCloser, error) {
	logger := c.logger.With("method", "CreateChatCompletionStream", "model", req.Model)
	logger.Debug("opening chat completion stream",
		"messages", len(req.Messages),
		"transforms", req.Transforms)

	body, err := c.marshalRequest(ctx, logger, req, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequestWithRetry(ctx, c.streamClient, http.MethodPost, "/chat/completions", body)
	if err != nil {
		logger.Error("stream request failed", "error", err)
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) marshalRequest(ctx context.Context, logger *slog.Logger, req *aisdk.ChatCompletionRequest, stream bool) ([]byte, error) {
	if c.config.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	out := *req
	out.Stream = stream

	if c.logger.Enabled(ctx, slog.LevelDebug) {
		if debugBody, err := json.MarshalIndent(out, "", "  "); err == nil {
			logger.Debug("formatted request", "body", string(debugBody))
		}
	}

	body, err := json.Marshal(out)
	if err != nil {
		logger.Error("failed to marshal request", "error", err)
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return body, nil
}

// newRequest creates a new HTTP request with the appropriate headers.
func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	url := c.config.BaseURL + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	// Optional headers for ranking
	if c.config.SiteURL != "" {
		req.Header.Set("HTTP-Referer", c.config.SiteURL)
	}
	if c.config.SiteName != "" {
		req.Header.Set("X-Title", c.config.SiteName)
	}

	return req, nil
}

// doRequestWithRetry performs an HTTP request with retry logic. Responses
// with a status below 400 are returned open; anything else is turned into
// an *APIError.
func (c *Client) doRequestWithRetry(ctx context.Context, client *http.Client, method, path string, body []byte) (*http.Response, error) {
	var lastErr error

	logger := c.logger.With("method", "doRequestWithRetry", "path", path)

	for attempt := 1; attempt <= c.config.RetryCount; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := c.newRequest(ctx, method, path, body)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := client.Do(req)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				if errors.Is(ctxErr, context.DeadlineExceeded) {
					return nil, &TimeoutError{Operation: method + " " + path, Duration: time.Since(start).Round(time.Millisecond), Cause: ctxErr}
				}
				return nil, ctxErr
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				err = &TimeoutError{Operation: method + " " + path, Duration: client.Timeout, Cause: err}
			}
			lastErr = err
			logger.Debug("request attempt failed", "attempt", attempt, "error", err)
		case resp.StatusCode < 400:
			return resp, nil
		default:
			apiErr := c.handleError(resp)
			resp.Body.Close()
			if !IsRetryable(apiErr) {
				return nil, apiErr
			}
			lastErr = apiErr
			logger.Debug("server error, retrying", "attempt", attempt, "status_code", resp.StatusCode)
		}

		if attempt == c.config.RetryCount {
			break
		}
		if err := sleepContext(ctx, GetRetryDelay(lastErr, attempt, c.config.RetryDelay)); err != nil {
			return nil, err
		}
	}

	logger.Error("request failed after all retries", "retry_count", c.config.RetryCount, "error", lastErr)
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.config.RetryCount, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// handleError processes error responses from the API.
func (c *Client) handleError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read error response: %w", err)
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    string(body),
		RequestID:  resp.Header.Get("X-Request-ID"),
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		// Return a basic API error if we can't parse the response
		return apiErr
	}

	apiErr.Type = errResp.Error.Type
	apiErr.Message = errResp.Error.Message
	apiErr.Code = rawCode(errResp.Error.Code)
	apiErr.Param = errResp.Error.Param
	apiErr.Details = errResp.Error.Metadata

	return apiErr
}
