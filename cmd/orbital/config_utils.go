package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/elee1766/orbital/src/config"
)

var (
	errConfig   = errors.New("configuration error")
	errNoAPIKey = errors.New("no API key configured, set ORBITAL_API_KEY or OPENROUTER_API_KEY")
)

// loadConfig loads the configuration from the specified path or default
// locations and applies CLI flags on top.
func loadConfig(cli *CLI) (*config.Config, error) {
	precedence := config.GetConfigPaths()
	if cli.Config != "" {
		precedence.UserConfig = cli.Config
	}

	cfg, err := config.NewLoader(precedence).Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}
	overrideConfigFromCLI(cfg, cli)
	return cfg, nil
}

// overrideConfigFromCLI overrides configuration values with CLI flags
func overrideConfigFromCLI(cfg *config.Config, cli *CLI) {
	if cli.APIKey != "" {
		cfg.API.APIKey = cli.APIKey
	}
	if cli.BaseURL != "" {
		cfg.API.BaseURL = cli.BaseURL
	}
	if cli.NoSearch {
		cfg.Search.Enabled = false
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
}

func requireAPIKey(cfg *config.Config) error {
	if cfg.API.APIKey == "" {
		return errNoAPIKey
	}
	return nil
}

// maskAPIKey masks an API key for display
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
