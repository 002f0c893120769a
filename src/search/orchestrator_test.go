package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/orbital/src/aisdk"
)

type fakeChecker struct {
	check   NeedCheck
	err     error
	history []*aisdk.Message
}

func (f *fakeChecker) CheckNeed(ctx context.Context, msg string, history []*aisdk.Message) (NeedCheck, error) {
	f.history = history
	return f.check, f.err
}

type fakePlanner struct {
	plan Plan
	err  error
}

func (f *fakePlanner) Plan(ctx context.Context, query string, history []*aisdk.Message) (Plan, error) {
	return f.plan, f.err
}

type fakeSearcher struct {
	mu       sync.Mutex
	byQuery  map[string][]Result
	errQuery map[string]error
	queries  []string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
}

func (f *fakeSearcher) Search(ctx context.Context, req Request) ([]Result, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.queries = append(f.queries, req.Query)
	f.mu.Unlock()

	if err := f.errQuery[req.Query]; err != nil {
		return nil, err
	}
	return f.byQuery[req.Query], nil
}

func TestOrchestratorFullRun(t *testing.T) {
	searcher := &fakeSearcher{
		byQuery: map[string][]Result{
			"weather berlin":  {{Title: "A", URL: "https://a.test"}, {Title: "B", URL: "https://b.test"}},
			"forecast berlin": {{Title: "B dup", URL: "https://b.test"}, {Title: "C", URL: "https://c.test"}},
		},
		delay: 20 * time.Millisecond,
	}
	var states []State
	o := NewOrchestrator(Config{
		Checker: &fakeChecker{check: NeedCheck{NeedsSearch: true}},
		Planner: &fakePlanner{plan: Plan{Searches: []Request{
			{Query: "weather berlin", Limit: 3},
			{Query: "forecast berlin", Limit: 3},
			{Query: "third is dropped", Limit: 3},
		}}},
		Searcher: searcher,
		Observe:  func(s State) { states = append(states, s) },
	})

	out := o.Run(context.Background(), "What's the weather tomorrow?", nil)
	require.True(t, out.Augmented())
	assert.Equal(t, StateFormatted, out.State)
	assert.Equal(t, []State{StateNeedCheck, StatePlanGeneration, StateExecution, StateFormatted}, states)
	assert.Len(t, out.Plan.Searches, 2)
	assert.NotContains(t, searcher.queries, "third is dropped")
	assert.EqualValues(t, 2, searcher.maxSeen.Load(), "searches should run concurrently")

	urls := make([]string, 0, len(out.Results))
	for _, r := range out.Results {
		urls = append(urls, r.URL)
	}
	assert.Equal(t, []string{"https://a.test", "https://b.test", "https://c.test"}, urls)
	assert.Equal(t, "B", out.Results[1].Title, "first occurrence wins")
	assert.Contains(t, out.Context, "## 1. A")
	assert.Contains(t, out.Context, "[[1]](https://a.test)")
}

func TestOrchestratorFailOpen(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		checker   *fakeChecker
		planner   *fakePlanner
		searcher  *fakeSearcher
		wantState State
		wantErr   bool
	}{
		{
			name:      "need check transport failure",
			checker:   &fakeChecker{err: boom},
			planner:   &fakePlanner{},
			searcher:  &fakeSearcher{},
			wantState: StateSkip,
			wantErr:   true,
		},
		{
			name:      "search not needed",
			checker:   &fakeChecker{check: NeedCheck{NeedsSearch: false, Reason: "greeting"}},
			planner:   &fakePlanner{},
			searcher:  &fakeSearcher{},
			wantState: StateSkip,
		},
		{
			name:    "planner failure falls back to raw query",
			checker: &fakeChecker{check: NeedCheck{NeedsSearch: true}},
			planner: &fakePlanner{err: boom},
			searcher: &fakeSearcher{byQuery: map[string][]Result{
				"hello?": {{Title: "x", URL: "https://x.test"}},
			}},
			wantState: StateFormatted,
			wantErr:   true,
		},
		{
			name:    "every search fails",
			checker: &fakeChecker{check: NeedCheck{NeedsSearch: true}},
			planner: &fakePlanner{plan: Plan{Searches: []Request{{Query: "a"}, {Query: "b"}}}},
			searcher: &fakeSearcher{errQuery: map[string]error{
				"a": boom,
				"b": boom,
			}},
			wantState: StateSkip,
		},
		{
			name:    "one search fails",
			checker: &fakeChecker{check: NeedCheck{NeedsSearch: true}},
			planner: &fakePlanner{plan: Plan{Searches: []Request{{Query: "a"}, {Query: "b"}}}},
			searcher: &fakeSearcher{
				errQuery: map[string]error{"a": boom},
				byQuery:  map[string][]Result{"b": {{URL: "https://b.test"}}},
			},
			wantState: StateFormatted,
		},
		{
			name:      "zero results",
			checker:   &fakeChecker{check: NeedCheck{NeedsSearch: true}},
			planner:   &fakePlanner{plan: Plan{Searches: []Request{{Query: "a"}}}},
			searcher:  &fakeSearcher{},
			wantState: StateSkip,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOrchestrator(Config{Checker: tt.checker, Planner: tt.planner, Searcher: tt.searcher})
			out := o.Run(context.Background(), "hello?", nil)
			assert.Equal(t, tt.wantState, out.State)
			assert.Equal(t, tt.wantState == StateFormatted, out.Augmented())
			if tt.wantErr {
				assert.ErrorIs(t, out.Err, boom)
			}
			if tt.wantState == StateSkip {
				assert.Empty(t, out.Context)
			}
		})
	}
}

func TestOrchestratorHistoryWindow(t *testing.T) {
	checker := &fakeChecker{}
	o := NewOrchestrator(Config{Checker: checker, Searcher: &fakeSearcher{}})

	var history []*aisdk.Message
	for i := 0; i < 9; i++ {
		history = append(history, &aisdk.Message{Role: aisdk.RoleUser, Content: string(rune('a' + i))})
	}
	o.Run(context.Background(), "q", history)

	require.Len(t, checker.history, HistoryTurns)
	assert.Equal(t, "e", checker.history[0].Content)
	assert.Equal(t, "i", checker.history[4].Content)
}

func TestOrchestratorWithoutCollaborators(t *testing.T) {
	out := NewOrchestrator(Config{}).Run(context.Background(), "q", nil)
	assert.Equal(t, StateSkip, out.State)
}

type fakeEnricher struct{ calls atomic.Int32 }

func (f *fakeEnricher) Enrich(ctx context.Context, results []Result) []Result {
	f.calls.Add(1)
	out := make([]Result, len(results))
	for i, r := range results {
		r.Markdown = "scraped"
		out[i] = r
	}
	return out
}

func TestOrchestratorEnrichesScrapeRequests(t *testing.T) {
	enricher := &fakeEnricher{}
	o := NewOrchestrator(Config{
		Checker: &fakeChecker{check: NeedCheck{NeedsSearch: true}},
		Planner: &fakePlanner{plan: Plan{Searches: []Request{
			{Query: "deep", ScrapeContent: true},
			{Query: "shallow"},
		}}},
		Searcher: &fakeSearcher{byQuery: map[string][]Result{
			"deep":    {{URL: "https://deep.test"}},
			"shallow": {{URL: "https://shallow.test"}},
		}},
		Enricher: enricher,
	})

	out := o.Run(context.Background(), "q", nil)
	require.Len(t, out.Results, 2)
	assert.EqualValues(t, 1, enricher.calls.Load())
	for _, r := range out.Results {
		if r.URL == "https://deep.test" {
			assert.Equal(t, "scraped", r.Markdown)
		} else {
			assert.Empty(t, r.Markdown)
		}
	}
}

func TestPlanNormalize(t *testing.T) {
	plan := Plan{Searches: []Request{
		{Query: ""},
		{Query: "a", Limit: 0, Sources: []string{"web", "video"}, Categories: []string{"pdf", "blogs"}},
		{Query: "b", Limit: 50},
		{Query: "c", Limit: 2},
	}}
	got := plan.Normalize(5)
	require.Len(t, got.Searches, MaxSearches)
	assert.Equal(t, Request{Query: "a", Limit: DefaultLimit, Sources: []string{"web"}, Categories: []string{"pdf"}}, got.Searches[0])
	assert.Equal(t, MaxLimit, got.Searches[1].Limit)

	assert.Len(t, plan.Normalize(1).Searches, 1)
}
