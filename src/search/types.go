// Package search decides whether a chat turn needs web retrieval, plans and
// runs the searches, and formats the results as model context.
package search

import (
	"context"

	"github.com/elee1766/orbital/src/aisdk"
)

// NeedCheck is the classifier's verdict on a user turn.
type NeedCheck struct {
	NeedsSearch    bool   `json:"needsSearch"`
	Reason         string `json:"reason,omitempty"`
	SuggestedQuery string `json:"suggestedQuery,omitempty"`
}

// Request is one planned search.
type Request struct {
	Query         string   `json:"query"`
	Limit         int      `json:"limit"`
	Sources       []string `json:"sources,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	TimeWindow    string   `json:"tbs,omitempty"`
	Location      string   `json:"location,omitempty"`
	ScrapeContent bool     `json:"scrapeContent,omitempty"`
}

// Plan is the bounded set of searches for one turn.
type Plan struct {
	Searches []Request `json:"searches"`
}

// Result is a single search hit.
type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	Markdown    string `json:"markdown,omitempty"`
}

// NeedChecker classifies whether a turn needs retrieval.
type NeedChecker interface {
	CheckNeed(ctx context.Context, userMessage string, history []*aisdk.Message) (NeedCheck, error)
}

// Planner derives a search plan for a turn.
type Planner interface {
	Plan(ctx context.Context, userQuery string, history []*aisdk.Message) (Plan, error)
}

// Searcher runs a single search.
type Searcher interface {
	Search(ctx context.Context, req Request) ([]Result, error)
}

// Enricher fills in page content for hits that came back without it.
type Enricher interface {
	Enrich(ctx context.Context, results []Result) []Result
}

// Allowed values for Request.Sources and Request.Categories.
var (
	SourceValues   = []string{"web", "news", "images"}
	CategoryValues = []string{"github", "research", "pdf"}
)

const (
	// MaxSearches caps the number of searches in a plan.
	MaxSearches = 2
	// DefaultLimit is used when a planned search has no usable limit.
	DefaultLimit = 3
	// MaxLimit caps results per search.
	MaxLimit = 10
)

// FallbackPlan is the single-search plan used when planning fails.
func FallbackPlan(query string) Plan {
	return Plan{Searches: []Request{{Query: query, Limit: DefaultLimit}}}
}

// Normalize drops empty queries, clamps limits, filters unknown sources and
// categories and truncates the plan to maxSearches entries.
func (p Plan) Normalize(maxSearches int) Plan {
	if maxSearches <= 0 || maxSearches > MaxSearches {
		maxSearches = MaxSearches
	}
	out := Plan{}
	for _, req := range p.Searches {
		if len(out.Searches) == maxSearches {
			break
		}
		if req.Query == "" {
			continue
		}
		switch {
		case req.Limit <= 0:
			req.Limit = DefaultLimit
		case req.Limit > MaxLimit:
			req.Limit = MaxLimit
		}
		req.Sources = filterAllowed(req.Sources, SourceValues)
		req.Categories = filterAllowed(req.Categories, CategoryValues)
		out.Searches = append(out.Searches, req)
	}
	return out
}

func filterAllowed(values, allowed []string) []string {
	var out []string
	for _, v := range values {
		for _, a := range allowed {
			if v == a {
				out = append(out, v)
				break
			}
		}
	}
	return out
}
