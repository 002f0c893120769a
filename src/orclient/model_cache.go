package orclient

import (
	"context"
	"sync"
	"time"

	"github.com/elee1766/orbital/src/aisdk"
)

// ModelCache keeps the registry's model list for a short TTL so per-model
// lookups do not each download the whole list.
type ModelCache struct {
	listCache *cachedModelList
	mu        sync.RWMutex
	ttl       time.Duration
	client    *Client
}

type cachedModelList struct {
	models    []*aisdk.ModelInfo
	byID      map[string]*aisdk.ModelInfo
	fetchedAt time.Time
}

// NewModelCache creates a new model cache
func NewModelCache(client *Client, ttl time.Duration) *ModelCache {
	return &ModelCache{
		ttl:    ttl,
		client: client,
	}
}

// GetModel returns a single model from the cached list.
func (mc *ModelCache) GetModel(ctx context.Context, modelID string) (*aisdk.ModelInfo, error) {
	list, err := mc.list(ctx)
	if err != nil {
		return nil, err
	}
	model, ok := list.byID[modelID]
	if !ok {
		return nil, ErrModelNotFound
	}
	return model, nil
}

// GetModelList gets the model list from cache or fetches it
func (mc *ModelCache) GetModelList(ctx context.Context) ([]*aisdk.ModelInfo, error) {
	list, err := mc.list(ctx)
	if err != nil {
		return nil, err
	}
	return list.models, nil
}

func (mc *ModelCache) list(ctx context.Context) (*cachedModelList, error) {
	mc.mu.RLock()
	cached := mc.listCache
	mc.mu.RUnlock()

	if cached != nil && time.Since(cached.fetchedAt) < mc.ttl {
		return cached, nil
	}

	models, err := mc.client.listModelsUncached(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*aisdk.ModelInfo, len(models))
	for _, m := range models {
		if m != nil {
			byID[m.ID] = m
		}
	}
	cached = &cachedModelList{
		models:    models,
		byID:      byID,
		fetchedAt: time.Now(),
	}

	mc.mu.Lock()
	mc.listCache = cached
	mc.mu.Unlock()

	return cached, nil
}

// ClearCache clears the cached list
func (mc *ModelCache) ClearCache() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.listCache = nil
}
