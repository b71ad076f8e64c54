package thumbnail

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"jellydiscord/internal/model"
)

func TestCanonicalizeID(t *testing.T) {
	got := canonicalizeID("0123456789abcdef0123456789abcdef")
	want := "01234567-89ab-cdef-0123-456789abcdef"
	if got != want {
		t.Fatalf("canonicalizeID = %s want %s", got, want)
	}
	if canonicalizeID("already-hyphenated") != "already-hyphenated" {
		t.Fatalf("canonicalizeID should leave non-matching ids untouched")
	}
}

func TestResolveEpisodeFallsBackToSeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("tag") == "series-tag" {
			w.Header().Set("Content-Type", "image/jpeg")
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	r := New(server.URL, server.Client())
	record := &model.Record{
		ID:       "ep1",
		Kind:     model.KindEpisode,
		SeriesID: "series1",
		Images:   model.ImageTags{SeriesPrimary: "series-tag"},
	}

	got := r.Resolve(context.Background(), record)
	if got == "" {
		t.Fatalf("expected a resolved thumbnail URL")
	}
}

func TestResolveNoCandidatesReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	r := New(server.URL, server.Client())
	record := &model.Record{ID: "m1", Kind: model.KindMovie}

	if got := r.Resolve(context.Background(), record); got != "" {
		t.Fatalf("expected empty string when no image tags set, got %q", got)
	}
}

func TestResolveCachesNegativeResult(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	r := New(server.URL, server.Client())
	record := &model.Record{ID: "m1", Kind: model.KindMovie, Images: model.ImageTags{Primary: "tag1"}}

	r.Resolve(context.Background(), record)
	r.Resolve(context.Background(), record)

	if calls != 1 {
		t.Fatalf("expected verification called once due to cache, got %d", calls)
	}
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls++
		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	r := New(server.URL, server.Client())
	r.ttl = time.Millisecond
	record := &model.Record{ID: "m1", Kind: model.KindMovie, Images: model.ImageTags{Primary: "tag1"}}

	r.Resolve(context.Background(), record)
	time.Sleep(5 * time.Millisecond)
	r.Resolve(context.Background(), record)

	if calls != 2 {
		t.Fatalf("expected cache entry to expire and re-verify, got %d calls", calls)
	}
}
