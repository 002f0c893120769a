package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"whitespace", "  \n{\"a\":1}\n ", `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"single line fence", "```json{\"a\":1}```", `{"a":1}`},
		{"fence with content on first line", "```{\"a\":1}\n```", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestDecode(t *testing.T) {
	type plan struct {
		Searches []struct {
			Query string `json:"query"`
		} `json:"searches"`
	}

	t.Run("fenced", func(t *testing.T) {
		var p plan
		require.NoError(t, Decode("```json\n{\"searches\":[{\"query\":\"go\"}]}\n```", &p))
		require.Len(t, p.Searches, 1)
		assert.Equal(t, "go", p.Searches[0].Query)
	})

	t.Run("surrounded by prose", func(t *testing.T) {
		var p plan
		require.NoError(t, Decode("Here is the plan: {\"searches\":[{\"query\":\"x\"}]} hope it helps", &p))
		require.Len(t, p.Searches, 1)
	})

	t.Run("garbage", func(t *testing.T) {
		var p plan
		assert.Error(t, Decode("not json at all", &p))
	})

	t.Run("empty", func(t *testing.T) {
		var p plan
		assert.ErrorIs(t, Decode("```\n```", &p), ErrNoJSON)
	})
}
