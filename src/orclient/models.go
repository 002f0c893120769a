package orclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/elee1766/orbital/src/aisdk"
)

// ModelsResponse represents the response from the OpenRouter models API
type ModelsResponse struct {
	Data []*aisdk.ModelInfo `json:"data"`
}

// GetModel returns registry metadata for a single model.
func (c *Client) GetModel(ctx context.Context, modelID string) (*aisdk.ModelInfo, error) {
	model, err := c.modelCache.GetModel(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get model %s: %w", modelID, err)
	}
	return model, nil
}

// ListModels returns all available models (with caching)
func (c *Client) ListModels(ctx context.Context) ([]*aisdk.ModelInfo, error) {
	return c.modelCache.GetModelList(ctx)
}

// listModelsUncached returns all available models without caching
func (c *Client) listModelsUncached(ctx context.Context) ([]*aisdk.ModelInfo, error) {
	logger := c.logger.With("method", "listModels")

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	// The models endpoint is public, the key is sent when available.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleError(resp)
	}

	var modelsResp ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&modelsResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	logger.Debug("fetched model list", "count", len(modelsResp.Data))
	return modelsResp.Data, nil
}

// FindModelByName searches for a model by name (case-insensitive)
func (c *Client) FindModelByName(ctx context.Context, name string) (*aisdk.ModelInfo, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	searchName := strings.ToLower(name)

	// First try exact match on ID
	for _, model := range models {
		if strings.ToLower(model.ID) == searchName {
			return model, nil
		}
	}

	// Then try partial match on ID or name
	for _, model := range models {
		if strings.Contains(strings.ToLower(model.ID), searchName) ||
			strings.Contains(strings.ToLower(model.Name), searchName) {
			return model, nil
		}
	}

	return nil, fmt.Errorf("model matching %s: %w", name, ErrModelNotFound)
}
