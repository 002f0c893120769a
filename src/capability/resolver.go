// Package capability resolves the context window and completion budget of a
// model, caching registry answers and degrading to static tables.
package capability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/elee1766/orbital/src/aisdk"
)

const (
	// DefaultTTL is how long a registry answer is reused.
	DefaultTTL = 5 * time.Minute
	// DefaultContextLength is used when nothing better is known.
	DefaultContextLength = 4096
	// DefaultMaxCompletionTokens is used when nothing better is known.
	DefaultMaxCompletionTokens = 4096

	defaultLookupTimeout = 10 * time.Second
)

// Source says where a Capability came from.
type Source string

const (
	SourceRegistry Source = "registry"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

// Capability is the budget of a model.
type Capability struct {
	ModelID             string `json:"model_id"`
	ContextLength       int    `json:"context_length"`
	MaxCompletionTokens int    `json:"max_completion_tokens"`
	Source              Source `json:"source"`
}

// Registry is the subset of the model registry the resolver needs.
type Registry interface {
	GetModel(ctx context.Context, modelID string) (*aisdk.ModelInfo, error)
}

// Config configures a Resolver.
type Config struct {
	Registry Registry
	TTL      time.Duration
	// Now is the clock used for cache expiry. Defaults to time.Now.
	Now           func() time.Time
	LookupTimeout time.Duration
	Logger        *slog.Logger
}

type cachedCapability struct {
	capability Capability
	fetchedAt  time.Time
}

// Resolver answers capability lookups. The cache is shared by every caller
// and entries expire by comparing against the clock at read time.
type Resolver struct {
	registry      Registry
	ttl           time.Duration
	now           func() time.Time
	lookupTimeout time.Duration
	logger        *slog.Logger

	mu    sync.RWMutex
	cache map[string]cachedCapability
	group singleflight.Group
}

// NewResolver creates a Resolver. A nil Registry makes every lookup use the
// static tables.
func NewResolver(cfg Config) *Resolver {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = defaultLookupTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		registry:      cfg.Registry,
		ttl:           cfg.TTL,
		now:           cfg.Now,
		lookupTimeout: cfg.LookupTimeout,
		logger:        logger.With("component", "capability_resolver"),
		cache:         make(map[string]cachedCapability),
	}
}

// Resolve returns the capability of modelID. It never fails: registry
// errors and unknown models degrade to the static tables.
func (r *Resolver) Resolve(ctx context.Context, modelID string) Capability {
	logger := r.logger.With("method", "Resolve", "model", modelID)

	if c, ok := r.cached(modelID); ok {
		c.Source = SourceCache
		return c
	}

	if r.registry == nil {
		return Fallback(modelID)
	}

	// Every caller waiting on modelID shares this lookup; one caller
	// leaving must not fail it for the rest.
	detached := context.WithoutCancel(ctx)
	ch := r.group.DoChan(modelID, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(detached, r.lookupTimeout)
		defer cancel()
		info, err := r.registry.GetModel(lookupCtx, modelID)
		if err != nil {
			return nil, err
		}
		c := FromModelInfo(modelID, info)
		r.mu.Lock()
		r.cache[modelID] = cachedCapability{capability: c, fetchedAt: r.now()}
		r.mu.Unlock()
		return c, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			logger.Warn("registry lookup failed, using fallback", "error", res.Err)
			return Fallback(modelID)
		}
		logger.Debug("resolved from registry", "shared", res.Shared)
		return res.Val.(Capability)
	case <-ctx.Done():
		logger.Debug("caller gave up on lookup, using fallback", "error", ctx.Err())
		return Fallback(modelID)
	}
}

func (r *Resolver) cached(modelID string) (Capability, bool) {
	r.mu.RLock()
	entry, ok := r.cache[modelID]
	r.mu.RUnlock()
	if !ok || r.now().Sub(entry.fetchedAt) >= r.ttl {
		return Capability{}, false
	}
	return entry.capability, true
}

// Invalidate removes modelID from the cache.
func (r *Resolver) Invalidate(modelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, modelID)
}

// Clear empties the cache.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]cachedCapability)
}

// CacheStats represents cache statistics.
type CacheStats struct {
	TotalEntries   int           `json:"total_entries"`
	ValidEntries   int           `json:"valid_entries"`
	ExpiredEntries int           `json:"expired_entries"`
	TTL            time.Duration `json:"ttl"`
}

// Stats returns cache statistics.
func (r *Resolver) Stats() CacheStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	stats := CacheStats{TotalEntries: len(r.cache), TTL: r.ttl}
	for _, entry := range r.cache {
		if now.Sub(entry.fetchedAt) < r.ttl {
			stats.ValidEntries++
		} else {
			stats.ExpiredEntries++
		}
	}
	return stats
}

// FromModelInfo converts a registry entry, filling gaps with defaults.
func FromModelInfo(modelID string, info *aisdk.ModelInfo) Capability {
	c := Capability{
		ModelID:             modelID,
		ContextLength:       DefaultContextLength,
		MaxCompletionTokens: DefaultMaxCompletionTokens,
		Source:              SourceRegistry,
	}
	if info == nil {
		return c
	}
	switch {
	case info.ContextLength > 0:
		c.ContextLength = info.ContextLength
	case info.TopProvider != nil && info.TopProvider.ContextLength > 0:
		c.ContextLength = info.TopProvider.ContextLength
	}
	if info.TopProvider != nil && info.TopProvider.MaxCompletionTokens > 0 {
		c.MaxCompletionTokens = info.TopProvider.MaxCompletionTokens
	}
	return c
}
