package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	jsonschema "github.com/swaggest/jsonschema-go"

	"github.com/elee1766/orbital/src/aisdk"
	"github.com/elee1766/orbital/src/jsonx"
	"github.com/elee1766/orbital/src/schema"
)

const (
	DefaultClassifierModel = "google/gemini-2.5-flash-lite-preview-09-2025"
	DefaultPlannerModel    = "google/gemini-2.5-flash"

	classifierTemperature = 0.3
	classifierMaxTokens   = 300
	plannerTemperature    = 0.3
	plannerMaxTokens      = 400
	plannerHistoryTurns   = 2
)

const needCheckPrompt = `You decide whether a user's question needs a web search before it can be answered well.

Search is needed for:
1. Recent news, events or figures
2. Real-time information such as weather, prices, schedules or scores
3. The current state of a specific product, company or person
4. Finding documents, references or web pages
5. Anything that happened recently
6. Verifying facts or numbers

Search is not needed for:
1. General knowledge such as history or basic science
2. Programming or math problems
3. Creative writing, translation or summarization
4. Personal advice or opinion
5. Well-known historical events or common sense
6. Small talk and greetings

Reply with a JSON object only:
{"needsSearch": true or false, "reason": "why", "suggestedQuery": "search keywords if a search is needed"}`

const planPrompt = `You plan web searches for a user's question.

Rules:
1. Produce at most %d searches. Prefer one when it is enough.
2. Keep each query short and focused on the key terms.
3. "limit" is the number of results to fetch, between 1 and %d.
4. Optional fields: "sources" (any of web, news, images), "categories" (any of github, research, pdf), "tbs" (time window such as qdr:d, qdr:w, qdr:m), "location" (a place name), "scrapeContent" (true when page content is needed, not just snippets).

Reply with a JSON object only:
{"searches": [{"query": "...", "limit": 3}]}`

// LLMConfig configures the model-backed checker and planner.
type LLMConfig struct {
	Completer aisdk.Completer
	Model     string
	// MaxSearches applies to the planner only.
	MaxSearches int
	Logger      *slog.Logger
}

// LLMNeedChecker asks a small model whether a turn needs search.
type LLMNeedChecker struct {
	completer aisdk.Completer
	model     string
	logger    *slog.Logger
}

// NewLLMNeedChecker creates a need checker.
func NewLLMNeedChecker(cfg LLMConfig) *LLMNeedChecker {
	if cfg.Model == "" {
		cfg.Model = DefaultClassifierModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMNeedChecker{
		completer: cfg.Completer,
		model:     cfg.Model,
		logger:    logger.With("component", "search_need_checker"),
	}
}

// CheckNeed classifies userMessage. Transport failures are returned; an
// unparseable answer counts as "no search".
func (c *LLMNeedChecker) CheckNeed(ctx context.Context, userMessage string, history []*aisdk.Message) (NeedCheck, error) {
	messages := make([]*aisdk.Message, 0, len(history)+2)
	messages = append(messages, &aisdk.Message{Role: aisdk.RoleSystem, Content: needCheckPrompt})
	messages = append(messages, conversational(history)...)
	messages = append(messages, &aisdk.Message{
		Role:    aisdk.RoleUser,
		Content: "Does this question need a web search?\n\n" + userMessage,
	})

	temperature := classifierTemperature
	maxTokens := classifierMaxTokens
	resp, err := c.completer.CreateChatCompletion(ctx, &aisdk.ChatCompletionRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    &temperature,
		MaxTokens:      &maxTokens,
		ResponseFormat: &aisdk.ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return NeedCheck{}, fmt.Errorf("need check: %w", err)
	}

	var check NeedCheck
	if err := jsonx.Decode(resp.FirstContent(), &check); err != nil {
		c.logger.Debug("unparseable need check answer", "content", resp.FirstContent(), "error", err)
		return NeedCheck{NeedsSearch: false, Reason: "unparseable classifier response"}, nil
	}
	return check, nil
}

// LLMPlanner asks a model for a structured search plan.
type LLMPlanner struct {
	completer   aisdk.Completer
	model       string
	maxSearches int
	schema      *jsonschema.Schema
	logger      *slog.Logger
}

// NewLLMPlanner creates a planner.
func NewLLMPlanner(cfg LLMConfig) *LLMPlanner {
	if cfg.Model == "" {
		cfg.Model = DefaultPlannerModel
	}
	if cfg.MaxSearches <= 0 || cfg.MaxSearches > MaxSearches {
		cfg.MaxSearches = MaxSearches
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMPlanner{
		completer:   cfg.Completer,
		model:       cfg.Model,
		maxSearches: cfg.MaxSearches,
		schema:      PlanSchema(cfg.MaxSearches),
		logger:      logger.With("component", "search_planner"),
	}
}

// Plan returns a normalized plan for userQuery. Transport failures are
// returned; an unparseable or empty answer yields FallbackPlan.
func (p *LLMPlanner) Plan(ctx context.Context, userQuery string, history []*aisdk.Message) (Plan, error) {
	messages := []*aisdk.Message{{
		Role:    aisdk.RoleSystem,
		Content: fmt.Sprintf(planPrompt, p.maxSearches, MaxLimit),
	}}
	messages = append(messages, conversational(lastN(history, plannerHistoryTurns))...)
	messages = append(messages, &aisdk.Message{Role: aisdk.RoleUser, Content: userQuery})

	temperature := plannerTemperature
	maxTokens := plannerMaxTokens
	resp, err := p.completer.CreateChatCompletion(ctx, &aisdk.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		ResponseFormat: &aisdk.ResponseFormat{
			Type: "json_schema",
			JSONSchema: &aisdk.JSONSchema{
				Name:   "search_plan",
				Schema: p.schema,
			},
		},
	})
	if err != nil {
		return Plan{}, fmt.Errorf("plan generation: %w", err)
	}

	var plan Plan
	if err := jsonx.Decode(resp.FirstContent(), &plan); err != nil {
		p.logger.Debug("unparseable plan, using single search", "content", resp.FirstContent(), "error", err)
		return FallbackPlan(userQuery), nil
	}
	plan = plan.Normalize(p.maxSearches)
	if len(plan.Searches) == 0 {
		return FallbackPlan(userQuery), nil
	}
	return plan, nil
}

// PlanSchema is the structured-output schema for a plan of at most
// maxSearches searches.
func PlanSchema(maxSearches int) *jsonschema.Schema {
	request := schema.CreateObjectSchema(map[string]*jsonschema.Schema{
		"query":         schema.CreateStringSchema("Short search query"),
		"limit":         schema.CreateBoundedIntSchema("Number of results to fetch", 1, MaxLimit),
		"sources":       schema.CreateStringArraySchema("Result sources", SourceValues),
		"categories":    schema.CreateStringArraySchema("Result categories", CategoryValues),
		"tbs":           schema.CreateStringSchema("Time window, e.g. qdr:d or qdr:w"),
		"location":      schema.CreateStringSchema("Location to bias results toward"),
		"scrapeContent": schema.CreateBoolSchema("Fetch full page content", false),
	}, []string{"query", "limit"})

	return schema.CreateObjectSchema(map[string]*jsonschema.Schema{
		"searches": schema.CreateArraySchema("Planned searches", request, maxSearches),
	}, []string{"searches"})
}

// conversational keeps user and assistant turns with content.
func conversational(history []*aisdk.Message) []*aisdk.Message {
	out := make([]*aisdk.Message, 0, len(history))
	for _, m := range history {
		if m == nil || strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Role != aisdk.RoleUser && m.Role != aisdk.RoleAssistant {
			continue
		}
		out = append(out, &aisdk.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
