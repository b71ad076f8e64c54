package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"jellydiscord/internal/model"
)

type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string]string)}
}

func (m *memCache) GetCached(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.data[key]
	return payload, ok, nil
}

func (m *memCache) PutCached(_ context.Context, key, _ string, payload string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = payload
	return nil
}

type fakeProvider struct {
	name    string
	result  *model.ProviderResult
	err     error
	calls   int
	mu      sync.Mutex
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Lookup(context.Context, *model.Record) (*model.ProviderResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.result, f.err
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestEnrichAggregatesAllProviders(t *testing.T) {
	omdb := &fakeProvider{name: "omdb", result: &model.ProviderResult{Provider: "omdb", Ratings: []model.Rating{{Source: "imdb", Value: "8.5/10"}}}}
	tmdb := &fakeProvider{name: "tmdb", result: &model.ProviderResult{Provider: "tmdb", Ratings: []model.Rating{{Source: "tmdb", Value: "85%"}}}}
	tvdb := &fakeProvider{name: "tvdb", result: &model.ProviderResult{Provider: "tvdb"}}

	e := New(newMemCache(), []Provider{omdb, tmdb, tvdb})
	bundle := e.Enrich(context.Background(), &model.Record{ID: "1", Name: "Show"})

	if bundle.OMDB == nil || bundle.TMDB == nil || bundle.TVDB == nil {
		t.Fatalf("expected all three provider slots populated: %+v", bundle)
	}
	if bundle.Ratings["imdb"].Normalized010 != 8.5 {
		t.Errorf("expected imdb rating 8.5, got %+v", bundle.Ratings["imdb"])
	}
	if bundle.Ratings["tmdb"].Normalized010 != 8.5 {
		t.Errorf("expected tmdb rating from %% normalized to 8.5, got %+v", bundle.Ratings["tmdb"])
	}
}

func TestEnrichProviderFailureDoesNotFailPipeline(t *testing.T) {
	working := &fakeProvider{name: "omdb", result: &model.ProviderResult{Provider: "omdb"}}
	broken := &fakeProvider{name: "tmdb", err: errors.New("boom")}

	e := New(newMemCache(), []Provider{working, broken})
	bundle := e.Enrich(context.Background(), &model.Record{ID: "1", Name: "Movie"})

	if bundle.OMDB == nil {
		t.Fatalf("expected omdb result present")
	}
	if bundle.TMDB != nil {
		t.Fatalf("expected tmdb slot empty after provider error, got %+v", bundle.TMDB)
	}
}

func TestEnrichCacheHitSkipsSecondCall(t *testing.T) {
	provider := &fakeProvider{name: "omdb", result: &model.ProviderResult{Provider: "omdb", Title: "Cached"}}
	cache := newMemCache()
	e := New(cache, []Provider{provider})
	record := &model.Record{ID: "1", Name: "Movie", Providers: model.ProviderIDs{IMDB: "tt1"}}

	e.Enrich(context.Background(), record)
	e.Enrich(context.Background(), record)

	if provider.callCount() != 1 {
		t.Fatalf("expected provider called once due to cache, got %d calls", provider.callCount())
	}
}

func TestEnrichNegativeCacheHitReturnsNil(t *testing.T) {
	provider := &fakeProvider{name: "omdb", result: nil}
	cache := newMemCache()
	e := New(cache, []Provider{provider})
	record := &model.Record{ID: "1", Name: "Movie", Providers: model.ProviderIDs{IMDB: "tt1"}}

	bundle := e.Enrich(context.Background(), record)
	if !bundle.IsEmpty() {
		t.Fatalf("expected empty bundle on miss, got %+v", bundle)
	}
	e.Enrich(context.Background(), record)
	if provider.callCount() != 1 {
		t.Fatalf("expected negative result to be cached, got %d calls", provider.callCount())
	}
}

func TestEnrichEmptyProvidersReturnsEmptyBundle(t *testing.T) {
	e := New(newMemCache(), nil)
	bundle := e.Enrich(context.Background(), &model.Record{ID: "1"})
	if !bundle.IsEmpty() {
		t.Fatalf("expected empty bundle with no providers, got %+v", bundle)
	}
}

func TestNormalizeRatingValue(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"8.5/10", 8.5, true},
		{"85%", 8.5, true},
		{"70/100", 7.0, true},
		{"3/5", 6.0, true},
		{"", 0, false},
		{"garbage", 0, false},
	}
	for _, c := range cases {
		got, ok := normalizeRatingValue(c.raw)
		if ok != c.ok {
			t.Errorf("normalizeRatingValue(%q) ok=%v want %v", c.raw, ok, c.ok)
			continue
		}
		if ok && got != c.want {
			t.Errorf("normalizeRatingValue(%q) = %v want %v", c.raw, got, c.want)
		}
	}
}
