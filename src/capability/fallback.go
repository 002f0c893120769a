package capability

import "strings"

type familyLimit struct {
	substr string
	value  int
}

// Ordered: the first matching substring wins.
var contextLengthTable = []familyLimit{
	{"gpt-4o", 128000},
	{"gpt-4", 8192},
	{"gpt-3.5", 4096},
	{"claude", 200000},
	{"gemini", 100000},
	{"deepseek", 64000},
}

var maxCompletionTable = []familyLimit{
	{"gpt-4o", 16384},
	{"gpt-4", 8192},
	{"claude-3.5", 8192},
	{"gemini-2", 8192},
	{"deepseek", 8192},
}

// fallbackModels maps model ids that may be unavailable to a known
// substitute.
var fallbackModels = map[string]string{
	"openai/gpt-5":         "openai/gpt-4o",
	"openai/gpt-5-mini":    "openai/gpt-4o-mini",
	"anthropic/claude-4":   "anthropic/claude-3.5-sonnet",
	"google/gemini-2.0":    "google/gemini-pro-1.5",
	"deepseek/deepseek-v3": "deepseek/deepseek-chat",
}

// FallbackModel returns the substitute for modelID, or modelID itself.
func FallbackModel(modelID string) string {
	if sub, ok := fallbackModels[modelID]; ok {
		return sub
	}
	return modelID
}

// Fallback returns the static capability for modelID, matching model
// families by substring.
func Fallback(modelID string) Capability {
	name := strings.ToLower(FallbackModel(modelID))
	return Capability{
		ModelID:             modelID,
		ContextLength:       lookup(contextLengthTable, name, DefaultContextLength),
		MaxCompletionTokens: lookup(maxCompletionTable, name, DefaultMaxCompletionTokens),
		Source:              SourceFallback,
	}
}

func lookup(table []familyLimit, name string, def int) int {
	for _, row := range table {
		if strings.Contains(name, row.substr) {
			return row.value
		}
	}
	return def
}
