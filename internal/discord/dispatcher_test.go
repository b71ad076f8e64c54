package discord

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"jellydiscord/internal/config"
	"jellydiscord/internal/model"
)

func testConfig(url string) *config.Config {
	return &config.Config{
		WebhookMovies:  config.WebhookConfig{URL: url, Enabled: true},
		WebhookTV:      config.WebhookConfig{URL: url, Enabled: true},
		WebhookMusic:   config.WebhookConfig{URL: "", Enabled: false},
		WebhookDefault: config.WebhookConfig{URL: url, Enabled: true},
	}
}

func TestRouteForKind(t *testing.T) {
	cases := map[model.Kind]Target{
		model.KindMovie:      TargetMovies,
		model.KindSeries:     TargetTV,
		model.KindSeason:     TargetTV,
		model.KindEpisode:    TargetTV,
		model.KindAudio:      TargetMusic,
		model.KindMusicAlbum: TargetMusic,
		model.KindPhoto:      TargetDefault,
	}
	for kind, want := range cases {
		if got := routeFor(kind); got != want {
			t.Errorf("routeFor(%s) = %s, want %s", kind, got, want)
		}
	}
}

func TestEnqueueFallsBackToDefaultWhenTargetDisabled(t *testing.T) {
	d := New(testConfig("http://example.invalid"), nil)
	record := &model.Record{ID: "a1", Name: "Song", Kind: model.KindAudio}
	if err := d.Enqueue(record, model.DiscordMessage{}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if d.StatsFor(TargetDefault).Queued != 1 {
		t.Errorf("expected queued message on default webhook")
	}
}

func TestEnqueueDropsWhenNoWebhookAvailable(t *testing.T) {
	cfg := &config.Config{}
	d := New(cfg, nil)
	record := &model.Record{ID: "a1", Name: "Song", Kind: model.KindMovie}
	if err := d.Enqueue(record, model.DiscordMessage{}); err == nil {
		t.Fatal("expected error when no webhook is configured")
	}
}

func TestSlidingWindowBlocksAfterLimit(t *testing.T) {
	w := newSlidingWindow(time.Minute, 2)
	now := time.Now()
	if !w.allow(now) {
		t.Fatal("expected first send to be allowed")
	}
	w.record(now)
	if !w.allow(now) {
		t.Fatal("expected second send to be allowed")
	}
	w.record(now)
	if w.allow(now) {
		t.Fatal("expected third send to be rate limited")
	}
}

func TestSlidingWindowPrunesExpiredEntries(t *testing.T) {
	w := newSlidingWindow(time.Minute, 1)
	now := time.Now()
	w.record(now)
	if w.allow(now) {
		t.Fatal("expected to be at limit immediately after recording")
	}
	later := now.Add(2 * time.Minute)
	if !w.allow(later) {
		t.Fatal("expected window to have cleared after expiry")
	}
}

func TestSlidingWindowBlockUntilDeadline(t *testing.T) {
	w := newSlidingWindow(time.Minute, 30)
	now := time.Now()
	w.block(now.Add(10 * time.Second))
	if w.allow(now) {
		t.Fatal("expected blocked window to deny sends")
	}
	if !w.allow(now.Add(11 * time.Second)) {
		t.Fatal("expected window to unblock after deadline")
	}
}

func TestBoundedQueueRejectsWhenFull(t *testing.T) {
	q := newBoundedQueue(1)
	if !q.Push(model.QueueEntry{ItemName: "one"}) {
		t.Fatal("expected first push to succeed")
	}
	if q.Push(model.QueueEntry{ItemName: "two"}) {
		t.Fatal("expected second push to fail when queue is full")
	}
}

func TestBoundedQueuePopHonorsNotBefore(t *testing.T) {
	q := newBoundedQueue(10)
	future := time.Now().Add(time.Hour)
	q.Push(model.QueueEntry{ItemName: "later", NotBefore: future})
	q.Push(model.QueueEntry{ItemName: "now", NotBefore: time.Now()})

	entry, ok := q.Pop(time.Now())
	if !ok {
		t.Fatal("expected a ready entry to pop")
	}
	if entry.ItemName != "now" {
		t.Errorf("ItemName = %q, want %q", entry.ItemName, "now")
	}
	if _, ok := q.Pop(time.Now()); ok {
		t.Fatal("expected no further entry to be ready yet")
	}
}

func TestDispatcherDeliversSuccessfulSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := New(testConfig(srv.URL), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	record := &model.Record{ID: "m1", Name: "Arrival", Kind: model.KindMovie}
	if err := d.Enqueue(record, model.DiscordMessage{}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if d.StatsFor(TargetMovies).Sent == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected message to be delivered within timeout")
}
