package capability

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

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeRegistry struct {
	calls  atomic.Int32
	models map[string]*aisdk.ModelInfo
	err    error
	block  chan struct{}
}

func (f *fakeRegistry) GetModel(ctx context.Context, modelID string) (*aisdk.ModelInfo, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.models[modelID]
	if !ok {
		return nil, errors.New("model not found")
	}
	return m, nil
}

func newTestResolver(reg Registry) (*Resolver, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewResolver(Config{Registry: reg, Now: clock.Now}), clock
}

func TestResolveFromRegistry(t *testing.T) {
	reg := &fakeRegistry{models: map[string]*aisdk.ModelInfo{
		"acme/big": {
			ID:            "acme/big",
			ContextLength: 32000,
			TopProvider:   &aisdk.TopProvider{MaxCompletionTokens: 2048},
		},
	}}
	r, _ := newTestResolver(reg)

	c := r.Resolve(context.Background(), "acme/big")
	assert.Equal(t, Capability{
		ModelID:             "acme/big",
		ContextLength:       32000,
		MaxCompletionTokens: 2048,
		Source:              SourceRegistry,
	}, c)

	c = r.Resolve(context.Background(), "acme/big")
	assert.Equal(t, SourceCache, c.Source)
	assert.Equal(t, 32000, c.ContextLength)
	assert.EqualValues(t, 1, reg.calls.Load())
}

func TestResolveCacheExpiresAtReadTime(t *testing.T) {
	reg := &fakeRegistry{models: map[string]*aisdk.ModelInfo{
		"acme/big": {ID: "acme/big", ContextLength: 32000},
	}}
	r, clock := newTestResolver(reg)
	ctx := context.Background()

	r.Resolve(ctx, "acme/big")
	clock.Advance(DefaultTTL - time.Second)
	assert.Equal(t, SourceCache, r.Resolve(ctx, "acme/big").Source)
	assert.EqualValues(t, 1, reg.calls.Load())

	clock.Advance(time.Second)
	stats := r.Stats()
	assert.Equal(t, 1, stats.ExpiredEntries)
	assert.Equal(t, 0, stats.ValidEntries)

	assert.Equal(t, SourceRegistry, r.Resolve(ctx, "acme/big").Source)
	assert.EqualValues(t, 2, reg.calls.Load())
}

func TestResolveRegistryDown(t *testing.T) {
	reg := &fakeRegistry{err: errors.New("connection refused")}
	r, _ := newTestResolver(reg)

	c := r.Resolve(context.Background(), "someone/unknown-model")
	assert.Equal(t, 4096, c.ContextLength)
	assert.Equal(t, 4096, c.MaxCompletionTokens)
	assert.Equal(t, SourceFallback, c.Source)

	// Failures are not cached.
	r.Resolve(context.Background(), "someone/unknown-model")
	assert.EqualValues(t, 2, reg.calls.Load())
	assert.Equal(t, 0, r.Stats().TotalEntries)
}

func TestResolveNilRegistry(t *testing.T) {
	r := NewResolver(Config{})
	c := r.Resolve(context.Background(), "openai/gpt-4o-mini")
	assert.Equal(t, 128000, c.ContextLength)
	assert.Equal(t, 16384, c.MaxCompletionTokens)
}

func TestResolveCollapsesConcurrentLookups(t *testing.T) {
	reg := &fakeRegistry{
		models: map[string]*aisdk.ModelInfo{"acme/big": {ID: "acme/big", ContextLength: 1000}},
		block:  make(chan struct{}),
	}
	r, _ := newTestResolver(reg)

	var wg sync.WaitGroup
	results := make([]Capability, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Resolve(context.Background(), "acme/big")
		}(i)
	}
	require.Eventually(t, func() bool { return reg.calls.Load() >= 1 }, time.Second, time.Millisecond)
	close(reg.block)
	wg.Wait()

	for _, c := range results {
		assert.Equal(t, 1000, c.ContextLength)
	}
	assert.EqualValues(t, 1, reg.calls.Load())
}

func TestResolveSharedLookupSurvivesCancelledCaller(t *testing.T) {
	reg := &fakeRegistry{
		models: map[string]*aisdk.ModelInfo{"google/gemini-2.5-pro": {
			ID:            "google/gemini-2.5-pro",
			ContextLength: 1000000,
			TopProvider:   &aisdk.TopProvider{MaxCompletionTokens: 65536},
		}},
		block: make(chan struct{}),
	}
	r, _ := newTestResolver(reg)

	first, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan Capability, 1)
	go func() { firstDone <- r.Resolve(first, "google/gemini-2.5-pro") }()
	require.Eventually(t, func() bool { return reg.calls.Load() == 1 }, time.Second, time.Millisecond)

	secondDone := make(chan Capability, 1)
	go func() { secondDone <- r.Resolve(context.Background(), "google/gemini-2.5-pro") }()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	select {
	case c := <-firstDone:
		assert.Equal(t, SourceFallback, c.Source)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller still waiting on the lookup")
	}

	close(reg.block)
	select {
	case c := <-secondDone:
		assert.Equal(t, SourceRegistry, c.Source)
		assert.Equal(t, 1000000, c.ContextLength)
		assert.Equal(t, 65536, c.MaxCompletionTokens)
	case <-time.After(time.Second):
		t.Fatal("second caller never resolved")
	}
	assert.EqualValues(t, 1, reg.calls.Load())
}

func TestInvalidateAndClear(t *testing.T) {
	reg := &fakeRegistry{models: map[string]*aisdk.ModelInfo{
		"a/x": {ID: "a/x", ContextLength: 10},
		"a/y": {ID: "a/y", ContextLength: 20},
	}}
	r, _ := newTestResolver(reg)
	ctx := context.Background()

	r.Resolve(ctx, "a/x")
	r.Resolve(ctx, "a/y")
	assert.Equal(t, 2, r.Stats().TotalEntries)

	r.Invalidate("a/x")
	assert.Equal(t, 1, r.Stats().TotalEntries)

	r.Clear()
	assert.Equal(t, 0, r.Stats().TotalEntries)
}

func TestFromModelInfo(t *testing.T) {
	tests := []struct {
		name        string
		info        *aisdk.ModelInfo
		wantContext int
		wantMax     int
	}{
		{"nil", nil, 4096, 4096},
		{"empty", &aisdk.ModelInfo{}, 4096, 4096},
		{"top provider context", &aisdk.ModelInfo{TopProvider: &aisdk.TopProvider{ContextLength: 9000}}, 9000, 4096},
		{"model context wins", &aisdk.ModelInfo{ContextLength: 5000, TopProvider: &aisdk.TopProvider{ContextLength: 9000, MaxCompletionTokens: 100}}, 5000, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := FromModelInfo("m", tt.info)
			assert.Equal(t, tt.wantContext, c.ContextLength)
			assert.Equal(t, tt.wantMax, c.MaxCompletionTokens)
		})
	}
}
