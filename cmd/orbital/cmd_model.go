package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/elee1766/orbital/src/aisdk"
	"github.com/elee1766/orbital/src/capability"
	"github.com/elee1766/orbital/src/config"
	"github.com/elee1766/orbital/src/orclient"
)

// ModelCmd manages model operations
type ModelCmd struct {
	List   ModelListCmd   `cmd:"" help:"List available models grouped by provider"`
	Info   ModelInfoCmd   `cmd:"" help:"Show a model and the limits used for it"`
	Search ModelSearchCmd `cmd:"" help:"Search for models by name"`
}

func newModelClient(cli *CLI) (*orclient.Client, *config.Config, error) {
	cfg, err := loadConfig(cli)
	if err != nil {
		return nil, nil, err
	}
	client := orclient.NewClient(orclient.Config{
		APIKey:     cfg.API.APIKey,
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		RetryCount: cfg.API.Retry.MaxRetries,
		RetryDelay: cfg.API.Retry.InitialDelay,
		SiteURL:    cfg.API.SiteURL,
		SiteName:   cfg.API.SiteName,
		Logger:     createCLILogger(cfg.Logging.Level),
	})
	return client, cfg, nil
}

// ModelListCmd lists available models
type ModelListCmd struct {
	Provider  string `short:"p" help:"Only list models of this provider"`
	Format    string `help:"Output format (table, json)" default:"table" enum:"table,json"`
	WithCosts bool   `help:"Include pricing information"`
}

// Run executes the model list command
func (c *ModelListCmd) Run(cli *CLI) error {
	client, _, err := newModelClient(cli)
	if err != nil {
		return err
	}

	models, err := client.ListModels(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	groups := capability.GroupByProvider(models)
	if c.Provider != "" {
		filtered := groups[:0]
		for _, g := range groups {
			if strings.EqualFold(g.Provider, c.Provider) {
				filtered = append(filtered, g)
			}
		}
		groups = filtered
	}

	switch c.Format {
	case "json":
		return printJSON(os.Stdout, groups)
	default:
		printModelGroups(os.Stdout, groups, c.WithCosts)
		return nil
	}
}

// ModelInfoCmd gets information about a specific model
type ModelInfoCmd struct {
	Model  string `arg:"" help:"Model id (provider/model)"`
	Format string `help:"Output format (table, json)" default:"table" enum:"table,json"`
}

type modelInfoOutput struct {
	Model      *aisdk.ModelInfo      `json:"model,omitempty"`
	Capability capability.Capability `json:"capability"`
	Substitute string                `json:"substitute,omitempty"`
}

// Run executes the model info command
func (c *ModelInfoCmd) Run(cli *CLI) error {
	client, cfg, err := newModelClient(cli)
	if err != nil {
		return err
	}
	ctx := context.Background()

	resolver := capability.NewResolver(capability.Config{
		Registry: client,
		TTL:      cfg.Capability.TTL,
	})

	out := modelInfoOutput{Capability: resolver.Resolve(ctx, c.Model)}
	if sub := capability.FallbackModel(c.Model); sub != c.Model {
		out.Substitute = sub
	}
	if model, err := client.GetModel(ctx, c.Model); err == nil {
		out.Model = model
	}

	if c.Format == "json" {
		return printJSON(os.Stdout, out)
	}
	printModelInfo(os.Stdout, c.Model, out)
	return nil
}

// ModelSearchCmd searches for models by name
type ModelSearchCmd struct {
	Query  string `arg:"" help:"Search query"`
	Format string `help:"Output format (table, json)" default:"table" enum:"table,json"`
}

// Run executes the model search command
func (c *ModelSearchCmd) Run(cli *CLI) error {
	client, _, err := newModelClient(cli)
	if err != nil {
		return err
	}

	models, err := client.ListModels(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	matches := filterModels(models, c.Query)
	if len(matches) == 0 {
		fmt.Printf("No models found matching '%s'\n", c.Query)
		return nil
	}

	if c.Format == "json" {
		return printJSON(os.Stdout, matches)
	}
	printModelGroups(os.Stdout, capability.GroupByProvider(matches), false)
	return nil
}

func filterModels(models []*aisdk.ModelInfo, query string) []*aisdk.ModelInfo {
	query = strings.ToLower(query)
	var matches []*aisdk.ModelInfo
	for _, model := range models {
		if strings.Contains(strings.ToLower(model.ID), query) ||
			strings.Contains(strings.ToLower(model.Name), query) {
			matches = append(matches, model)
		}
	}
	return matches
}

// Helper functions for printing

func printJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func printModelGroups(out io.Writer, groups []capability.ProviderGroup, withCosts bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	for i, g := range groups {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%d)\n", g.Provider, len(g.Models))
		for _, model := range g.Models {
			if withCosts {
				promptCost, completionCost := "N/A", "N/A"
				if model.Pricing != nil {
					if model.Pricing.Prompt != "" {
						promptCost = model.Pricing.Prompt
					}
					if model.Pricing.Completion != "" {
						completionCost = model.Pricing.Completion
					}
				}
				fmt.Fprintf(w, "  %s\t%s\t%d\t%s\t%s\n", model.ID, model.Name, model.ContextLength, promptCost, completionCost)
				continue
			}
			fmt.Fprintf(w, "  %s\t%s\t%d\n", model.ID, model.Name, model.ContextLength)
		}
	}
}

func printModelInfo(out io.Writer, id string, info modelInfoOutput) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "ID:\t%s\n", id)
	if info.Substitute != "" {
		fmt.Fprintf(w, "Substitute:\t%s\n", info.Substitute)
	}
	if m := info.Model; m != nil {
		fmt.Fprintf(w, "Name:\t%s\n", m.Name)
		if m.Description != "" {
			fmt.Fprintf(w, "Description:\t%s\n", m.Description)
		}
		if m.Pricing != nil {
			fmt.Fprintf(w, "Prompt cost:\t%s per token\n", m.Pricing.Prompt)
			fmt.Fprintf(w, "Completion cost:\t%s per token\n", m.Pricing.Completion)
		}
		if len(m.SupportedParameters) > 0 {
			fmt.Fprintf(w, "Parameters:\t%s\n", strings.Join(m.SupportedParameters, ", "))
		}
	}
	fmt.Fprintf(w, "Context length:\t%d\n", info.Capability.ContextLength)
	fmt.Fprintf(w, "Max completion:\t%d\n", info.Capability.MaxCompletionTokens)
	fmt.Fprintf(w, "Source:\t%s\n", info.Capability.Source)
}
