package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elee1766/orbital/src/aisdk"
)

func TestFallback(t *testing.T) {
	tests := []struct {
		model       string
		wantContext int
		wantMax     int
	}{
		{"openai/gpt-4o", 128000, 16384},
		{"openai/gpt-4-turbo", 8192, 8192},
		{"openai/gpt-3.5-turbo", 4096, 4096},
		{"anthropic/claude-3.5-sonnet", 200000, 8192},
		{"anthropic/claude-3-opus", 200000, 4096},
		{"google/gemini-2.5-flash", 100000, 8192},
		{"deepseek/deepseek-r1", 64000, 8192},
		{"mystery/model", 4096, 4096},
		{"OpenAI/GPT-4o", 128000, 16384},
		// Substituted before matching.
		{"openai/gpt-5", 128000, 16384},
		{"anthropic/claude-4", 200000, 8192},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			c := Fallback(tt.model)
			assert.Equal(t, tt.wantContext, c.ContextLength)
			assert.Equal(t, tt.wantMax, c.MaxCompletionTokens)
			assert.Equal(t, tt.model, c.ModelID)
			assert.Equal(t, SourceFallback, c.Source)
		})
	}
}

func TestNormalizeModelID(t *testing.T) {
	assert.Equal(t, "openai/gpt-4o", NormalizeModelID("openai", "gpt-4o"))
	assert.Equal(t, "anthropic/claude-3.5-sonnet", NormalizeModelID("openai", "anthropic/claude-3.5-sonnet"))
	assert.Equal(t, "openrouter/auto", NormalizeModelID("", "openrouter/auto"))
	assert.Equal(t, "auto", NormalizeModelID("", "auto"))
}

func TestGroupByProvider(t *testing.T) {
	models := []*aisdk.ModelInfo{
		{ID: "openai/gpt-4o"},
		{ID: "anthropic/claude-3.5-sonnet"},
		nil,
		{ID: "openai/gpt-4o-mini"},
		{ID: "loner"},
	}
	groups := GroupByProvider(models)
	if assert.Len(t, groups, 3) {
		assert.Equal(t, "anthropic", groups[0].Provider)
		assert.Equal(t, "openai", groups[1].Provider)
		assert.Equal(t, "other", groups[2].Provider)
		assert.Equal(t, "openai/gpt-4o", groups[1].Models[0].ID)
		assert.Equal(t, "openai/gpt-4o-mini", groups[1].Models[1].ID)
	}
}
