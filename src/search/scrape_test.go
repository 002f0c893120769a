package search

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPage = `<html><head><title>Release Notes</title><style>body{}</style></head>
<body><nav>menu</nav><h1>Go 1.24</h1><p>Generic type <strong>aliases</strong> are here.</p>
<script>alert(1)</script></body></html>`

func TestScraperFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "orbital/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, testPage)
	}))
	defer srv.Close()

	page, err := NewScraper(ScraperConfig{}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Release Notes", page.Title)
	assert.Contains(t, page.Markdown, "# Go 1.24")
	assert.Contains(t, page.Markdown, "**aliases**")
	assert.NotContains(t, page.Markdown, "alert")
	assert.NotContains(t, page.Markdown, "menu")
}

func TestScraperRejectsBadScheme(t *testing.T) {
	_, err := NewScraper(ScraperConfig{}).Fetch(context.Background(), "ftp://example.test")
	assert.Error(t, err)
}

func TestScraperEnrich(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "plain body\n")
	}))
	defer srv.Close()

	in := []Result{
		{URL: srv.URL + "/page"},
		{URL: srv.URL + "/missing", Title: "kept"},
		{URL: srv.URL + "/page", Markdown: "already"},
	}
	out := NewScraper(ScraperConfig{}).Enrich(context.Background(), in)

	require.Len(t, out, 3)
	assert.Equal(t, "plain body", out[0].Markdown)
	assert.Equal(t, Result{URL: srv.URL + "/missing", Title: "kept"}, out[1])
	assert.Equal(t, "already", out[2].Markdown)
	assert.Empty(t, in[0].Markdown, "input must not be modified")
}
