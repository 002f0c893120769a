// Package window assembles the outbound message list for a completion
// request under the history cap and the model's token budget.
package window

import (
	"context"
	"log/slog"
	"strings"

	"github.com/elee1766/orbital/src/aisdk"
	"github.com/elee1766/orbital/src/capability"
	"github.com/elee1766/orbital/src/tokens"
)

const (
	// DefaultHistoryLimit is the hard cap on history messages sent upstream.
	DefaultHistoryLimit = 10
	// DefaultTemperature is used when a conversation does not set one.
	DefaultTemperature = 0.7
)

// DefaultSystemPrompt is used for conversations without their own prompt.
const DefaultSystemPrompt = `You are a helpful assistant. Answer clearly and accurately, use Markdown when it helps readability, and say so when you are unsure.`

// Resolver is the part of the capability resolver the builder needs.
type Resolver interface {
	Resolve(ctx context.Context, modelID string) capability.Capability
}

// Conversation is the builder's view of a conversation.
type Conversation struct {
	ProviderID   string
	ModelID      string
	SystemPrompt string
	// Temperature overrides the builder default when set.
	Temperature *float64
	Messages    []*aisdk.Message
}

// Config configures a Builder.
type Config struct {
	Resolver            Resolver
	HistoryLimit        int
	DefaultSystemPrompt string
	Temperature         *float64
	Logger              *slog.Logger
}

// Stats describes how a request was assembled.
type Stats struct {
	HistoryMessages     int               `json:"history_messages"`
	Dropped             int               `json:"dropped"`
	InjectedSystem      int               `json:"injected_system"`
	EstimatedTokens     int               `json:"estimated_tokens"`
	ContextLength       int               `json:"context_length"`
	MaxCompletionTokens int               `json:"max_completion_tokens"`
	Compressed          bool              `json:"compressed"`
	CapabilitySource    capability.Source `json:"capability_source"`
}

// Builder builds completion requests.
type Builder struct {
	resolver     Resolver
	historyLimit int
	systemPrompt string
	temperature  float64
	logger       *slog.Logger
}

// NewBuilder creates a Builder. A nil Resolver uses the static fallback
// tables.
func NewBuilder(cfg Config) *Builder {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if strings.TrimSpace(cfg.DefaultSystemPrompt) == "" {
		cfg.DefaultSystemPrompt = DefaultSystemPrompt
	}
	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		resolver:     cfg.Resolver,
		historyLimit: cfg.HistoryLimit,
		systemPrompt: cfg.DefaultSystemPrompt,
		temperature:  temperature,
		logger:       logger.With("component", "context_builder"),
	}
}

// Build returns the streaming request for conv. searchContext, when not
// blank, is injected as a leading system message.
func (b *Builder) Build(ctx context.Context, conv Conversation, searchContext string) (*aisdk.ChatCompletionRequest, Stats) {
	var stats Stats

	history := make([]*aisdk.Message, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		if m == nil {
			continue
		}
		if m.Role == aisdk.RoleAssistant && m.Content == "" {
			continue
		}
		history = append(history, &aisdk.Message{Role: m.Role, Content: m.Content, Name: m.Name})
	}
	if len(history) > b.historyLimit {
		stats.Dropped = len(history) - b.historyLimit
		history = history[len(history)-b.historyLimit:]
	}
	stats.HistoryMessages = len(history)

	messages := history
	if !hasSystem(messages) {
		prompt := conv.SystemPrompt
		if strings.TrimSpace(prompt) == "" {
			prompt = b.systemPrompt
		}
		messages = append([]*aisdk.Message{{Role: aisdk.RoleSystem, Content: prompt}}, messages...)
		stats.InjectedSystem++
	}
	if strings.TrimSpace(searchContext) != "" {
		messages = append([]*aisdk.Message{{Role: aisdk.RoleSystem, Content: searchContext}}, messages...)
		stats.InjectedSystem++
	}

	modelID := capability.NormalizeModelID(conv.ProviderID, conv.ModelID)
	capab := b.resolve(ctx, modelID)
	stats.ContextLength = capab.ContextLength
	stats.MaxCompletionTokens = capab.MaxCompletionTokens
	stats.CapabilitySource = capab.Source
	stats.EstimatedTokens = tokens.Estimate(messages)

	temperature := b.temperature
	if conv.Temperature != nil {
		temperature = *conv.Temperature
	}
	maxTokens := capab.MaxCompletionTokens

	req := &aisdk.ChatCompletionRequest{
		Model:       modelID,
		Messages:    messages,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		Stream:      true,
	}
	if stats.EstimatedTokens > capab.ContextLength {
		req.Transforms = []string{aisdk.TransformMiddleOut}
		stats.Compressed = true
	}

	b.logger.Debug("built request",
		"model", modelID,
		"messages", len(messages),
		"dropped", stats.Dropped,
		"estimated_tokens", stats.EstimatedTokens,
		"context_length", stats.ContextLength,
		"compressed", stats.Compressed,
	)
	return req, stats
}

func (b *Builder) resolve(ctx context.Context, modelID string) capability.Capability {
	if b.resolver == nil {
		return capability.Fallback(modelID)
	}
	return b.resolver.Resolve(ctx, modelID)
}

func hasSystem(messages []*aisdk.Message) bool {
	for _, m := range messages {
		if m.Role == aisdk.RoleSystem {
			return true
		}
	}
	return false
}
