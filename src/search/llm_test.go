package search

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/orbital/src/aisdk"
)

type fakeCompleter struct {
	content string
	err     error
	last    *aisdk.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, req *aisdk.ChatCompletionRequest) (*aisdk.ChatCompletionResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &aisdk.ChatCompletionResponse{
		Choices: []aisdk.Choice{{Message: aisdk.Message{Role: aisdk.RoleAssistant, Content: f.content}}},
	}, nil
}

func TestLLMNeedChecker(t *testing.T) {
	completer := &fakeCompleter{content: "```json\n{\"needsSearch\":true,\"reason\":\"weather\",\"suggestedQuery\":\"weather tomorrow\"}\n```"}
	checker := NewLLMNeedChecker(LLMConfig{Completer: completer})

	history := []*aisdk.Message{
		{Role: aisdk.RoleSystem, Content: "be nice"},
		{Role: aisdk.RoleUser, Content: "hi"},
		{Role: aisdk.RoleAssistant, Content: ""},
	}
	check, err := checker.CheckNeed(context.Background(), "What's the weather tomorrow?", history)
	require.NoError(t, err)
	assert.Equal(t, NeedCheck{NeedsSearch: true, Reason: "weather", SuggestedQuery: "weather tomorrow"}, check)

	req := completer.last
	assert.Equal(t, DefaultClassifierModel, req.Model)
	assert.Equal(t, "json_object", req.ResponseFormat.Type)
	assert.Equal(t, 300, *req.MaxTokens)
	assert.InDelta(t, 0.3, *req.Temperature, 1e-9)
	// system prompt, one usable history turn, the question
	require.Len(t, req.Messages, 3)
	assert.Equal(t, aisdk.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "hi", req.Messages[1].Content)
	assert.Contains(t, req.Messages[2].Content, "What's the weather tomorrow?")
}

func TestLLMNeedCheckerUnparseable(t *testing.T) {
	checker := NewLLMNeedChecker(LLMConfig{Completer: &fakeCompleter{content: "sure, search away"}})
	check, err := checker.CheckNeed(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.False(t, check.NeedsSearch)
}

func TestLLMNeedCheckerTransportError(t *testing.T) {
	boom := errors.New("boom")
	checker := NewLLMNeedChecker(LLMConfig{Completer: &fakeCompleter{err: boom}})
	_, err := checker.CheckNeed(context.Background(), "q", nil)
	assert.ErrorIs(t, err, boom)
}

func TestLLMPlanner(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Plan
	}{
		{
			name:    "fenced plan",
			content: "```json\n{\"searches\":[{\"query\":\"berlin weather\",\"limit\":4,\"tbs\":\"qdr:d\"}]}\n```",
			want:    Plan{Searches: []Request{{Query: "berlin weather", Limit: 4, TimeWindow: "qdr:d"}}},
		},
		{
			name:    "capped at two",
			content: `{"searches":[{"query":"a","limit":1},{"query":"b","limit":1},{"query":"c","limit":1}]}`,
			want:    Plan{Searches: []Request{{Query: "a", Limit: 1}, {Query: "b", Limit: 1}}},
		},
		{
			name:    "garbage falls back",
			content: "I would search for the weather.",
			want:    FallbackPlan("weather?"),
		},
		{
			name:    "empty plan falls back",
			content: `{"searches":[]}`,
			want:    FallbackPlan("weather?"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &fakeCompleter{content: tt.content}
			planner := NewLLMPlanner(LLMConfig{Completer: completer})
			plan, err := planner.Plan(context.Background(), "weather?", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, plan)
			assert.Equal(t, DefaultPlannerModel, completer.last.Model)
			assert.Equal(t, "json_schema", completer.last.ResponseFormat.Type)
		})
	}
}

func TestLLMPlannerTransportError(t *testing.T) {
	boom := errors.New("boom")
	planner := NewLLMPlanner(LLMConfig{Completer: &fakeCompleter{err: boom}})
	_, err := planner.Plan(context.Background(), "q", nil)
	assert.ErrorIs(t, err, boom)
}

func TestPlanSchema(t *testing.T) {
	raw, err := json.Marshal(PlanSchema(2))
	require.NoError(t, err)

	var decoded struct {
		Required   []string `json:"required"`
		Properties struct {
			Searches struct {
				MaxItems int `json:"maxItems"`
				Items    struct {
					Required   []string                   `json:"required"`
					Properties map[string]json.RawMessage `json:"properties"`
				} `json:"items"`
			} `json:"searches"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, []string{"searches"}, decoded.Required)
	assert.Equal(t, 2, decoded.Properties.Searches.MaxItems)
	assert.ElementsMatch(t, []string{"query", "limit"}, decoded.Properties.Searches.Items.Required)
	assert.Contains(t, decoded.Properties.Searches.Items.Properties, "tbs")
	assert.Contains(t, decoded.Properties.Searches.Items.Properties, "scrapeContent")
}
