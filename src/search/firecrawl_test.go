package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirecrawlSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer fc-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "go generics", body["query"])
		assert.EqualValues(t, 2, body["limit"])
		assert.Equal(t, "qdr:w", body["tbs"])
		assert.Equal(t, []any{"news"}, body["sources"])
		assert.Equal(t, map[string]any{"formats": []any{"markdown"}}, body["scrapeOptions"])
		assert.NotContains(t, body, "location")

		_, _ = io.WriteString(w, `{"success":true,"data":{"web":[
			{"title":"Generics","url":"https://go.dev/doc/generics","description":"intro","markdown":"# Generics"}
		]}}`)
	}))
	defer srv.Close()

	client := NewFirecrawlClient(FirecrawlConfig{BaseURL: srv.URL, APIKey: "fc-test"})
	results, err := client.Search(context.Background(), Request{
		Query:         "go generics",
		Limit:         2,
		TimeWindow:    "qdr:w",
		Sources:       []string{"news"},
		ScrapeContent: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []Result{{
		Title:       "Generics",
		URL:         "https://go.dev/doc/generics",
		Description: "intro",
		Markdown:    "# Generics",
	}}, results)
}

func TestFirecrawlDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 5, body["limit"])
		assert.NotContains(t, body, "scrapeOptions")
		_, _ = io.WriteString(w, `{"success":true,"data":{"web":[]}}`)
	}))
	defer srv.Close()

	results, err := NewFirecrawlClient(FirecrawlConfig{BaseURL: srv.URL}).Search(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFirecrawlErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "http error", status: http.StatusPaymentRequired, body: `{"error":"no credits"}`},
		{name: "unsuccessful", status: http.StatusOK, body: `{"success":false,"error":"bad query"}`, wantErr: ErrSearchFailed},
		{name: "bad json", status: http.StatusOK, body: `{"success":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewFirecrawlClient(FirecrawlConfig{BaseURL: srv.URL}).Search(context.Background(), Request{Query: "q"})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
