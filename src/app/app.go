package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/elee1766/orbital/src/capability"
	"github.com/elee1766/orbital/src/config"
	"github.com/elee1766/orbital/src/conversation"
	"github.com/elee1766/orbital/src/orclient"
	"github.com/elee1766/orbital/src/search"
	"github.com/elee1766/orbital/src/storage"
	"github.com/elee1766/orbital/src/stream"
	"github.com/elee1766/orbital/src/window"
)

const shutdownTimeout = 5 * time.Second

// App represents the main application with all services
type App struct {
	Config     *config.Config
	Provider   *orclient.Client
	Resolver   *capability.Resolver
	Search     *search.Orchestrator
	Repository storage.Repository
	Store      *conversation.Store
	Logger     *slog.Logger
}

// Options holds what New needs beyond the loaded configuration
type Options struct {
	Config *config.Config
	// Events receives every conversation event. Optional.
	Events conversation.EventSink
	// Ephemeral keeps conversations in memory only.
	Ephemeral bool
	Logger    *slog.Logger
}

// New creates a new App instance with all services initialized and the
// persisted conversations loaded.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	provider := orclient.NewClient(orclient.Config{
		APIKey:            cfg.API.APIKey,
		BaseURL:           cfg.API.BaseURL,
		Logger:            logger,
		Timeout:           cfg.API.Timeout,
		RetryCount:        cfg.API.Retry.MaxRetries,
		RetryDelay:        cfg.API.Retry.InitialDelay,
		SiteURL:           cfg.API.SiteURL,
		SiteName:          cfg.API.SiteName,
		RequestsPerMinute: cfg.API.RateLimit.RequestsPerMinute,
		Burst:             cfg.API.RateLimit.BurstSize,
		ModelListTTL:      cfg.Capability.TTL,
	})

	resolver := capability.NewResolver(capability.Config{
		Registry: provider,
		TTL:      cfg.Capability.TTL,
		Logger:   logger,
	})

	var temperature *float64
	if cfg.Chat.Temperature > 0 {
		t := cfg.Chat.Temperature
		temperature = &t
	}
	builder := window.NewBuilder(window.Config{
		Resolver:            resolver,
		HistoryLimit:        cfg.Chat.HistoryLimit,
		DefaultSystemPrompt: cfg.Chat.SystemPrompt,
		Temperature:         temperature,
		Logger:              logger,
	})

	orchestrator := newSearch(cfg, provider, logger)

	var repo storage.Repository
	if !opts.Ephemeral {
		path := cfg.StoragePath()
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		r, err := storage.New(storage.Config{
			Driver:              cfg.Storage.Driver,
			Path:                path,
			DefaultSystemPrompt: systemPrompt(cfg),
			Logger:              logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		repo = r
	}

	storeCfg := conversation.Config{
		Completer:         provider,
		Builder:           builder,
		Parser:            stream.NewParser(stream.Config{Logger: logger}),
		Repository:        repo,
		Events:            opts.Events,
		DefaultProviderID: cfg.Chat.Provider,
		DefaultModelID:    cfg.Chat.Model,
		SystemPrompt:      cfg.Chat.SystemPrompt,
		Logger:            logger,
	}
	// A nil *Orchestrator must not become a non-nil interface.
	if orchestrator != nil {
		storeCfg.Search = orchestrator
	}
	store := conversation.NewStore(storeCfg)

	if err := store.Load(ctx); err != nil {
		if repo != nil {
			repo.Close()
		}
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}

	return &App{
		Config:     cfg,
		Provider:   provider,
		Resolver:   resolver,
		Search:     orchestrator,
		Repository: repo,
		Store:      store,
		Logger:     logger,
	}, nil
}

// newSearch wires the search stage. It returns nil when search is disabled
// or no search API key is configured.
func newSearch(cfg *config.Config, provider *orclient.Client, logger *slog.Logger) *search.Orchestrator {
	if !cfg.Search.Enabled {
		return nil
	}
	if cfg.Search.APIKey == "" {
		logger.Debug("search disabled, no search API key configured")
		return nil
	}

	searchCfg := search.Config{
		Checker: search.NewLLMNeedChecker(search.LLMConfig{
			Completer: provider,
			Model:     cfg.Search.ClassifierModel,
			Logger:    logger,
		}),
		Planner: search.NewLLMPlanner(search.LLMConfig{
			Completer:   provider,
			Model:       cfg.Search.PlannerModel,
			MaxSearches: cfg.Search.MaxSearches,
			Logger:      logger,
		}),
		Searcher: search.NewFirecrawlClient(search.FirecrawlConfig{
			BaseURL:           cfg.Search.BaseURL,
			APIKey:            cfg.Search.APIKey,
			RequestsPerMinute: cfg.Search.RequestsPerMinute,
			DefaultLimit:      cfg.Search.ResultLimit,
			Logger:            logger,
		}),
		MaxSearches: cfg.Search.MaxSearches,
		Logger:      logger,
	}
	if cfg.Search.ScrapeFallback {
		searchCfg.Enricher = search.NewScraper(search.ScraperConfig{Logger: logger})
	}
	return search.NewOrchestrator(searchCfg)
}

func systemPrompt(cfg *config.Config) string {
	if cfg.Chat.SystemPrompt != "" {
		return cfg.Chat.SystemPrompt
	}
	return window.DefaultSystemPrompt
}

// Close stops open streams and closes all resources held by the app
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Store.Shutdown(ctx); err != nil {
		a.Logger.Warn("streams still open at shutdown", "error", err)
	}
	if a.Repository != nil {
		return a.Repository.Close()
	}
	return nil
}
