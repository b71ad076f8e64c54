package sync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"jellydiscord/internal/config"
	"jellydiscord/internal/detect"
	"jellydiscord/internal/discord"
	"jellydiscord/internal/enrich"
	"jellydiscord/internal/jellyfin"
	"jellydiscord/internal/model"
	"jellydiscord/internal/render"
	"jellydiscord/internal/store"
)

// fakeStore is an in-memory stand-in for the persistence layer, tracking
// only what the sync engine actually needs.
type fakeStore struct {
	mu           sync.Mutex
	fingerprints map[string]string
	records      map[string]*store.StoredRecord
	saved        []*model.Record
	starts       int
	finishes     int
	lastScanned  int
	lastChanged  int
	lastAdded    int
	notified     []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		fingerprints: map[string]string{},
		records:      map[string]*store.StoredRecord{},
	}
}

func (f *fakeStore) GetFingerprint(ctx context.Context, id string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fp, ok := f.fingerprints[id]
	return fp, ok, nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (*store.StoredRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return rec, nil
}

func (f *fakeStore) SaveBatch(ctx context.Context, records []*model.Record) (store.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range records {
		f.saved = append(f.saved, r)
		f.fingerprints[r.ID] = r.Fingerprint()
		f.records[r.ID] = &store.StoredRecord{Record: *r}
	}
	return store.BatchResult{}, nil
}

func (f *fakeStore) RecordSyncStart(ctx context.Context, syncType model.SyncType, started time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return nil
}

func (f *fakeStore) RecordSyncFinish(ctx context.Context, finished time.Time, scanned, changed, added int, syncErr error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishes++
	f.lastScanned = scanned
	f.lastChanged = changed
	f.lastAdded = added
	return nil
}

func (f *fakeStore) MarkNotified(ctx context.Context, id string, when time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, id)
	return nil
}

// fakeItemSource replays a fixed set of pre-converted batches, ignoring the
// wire-level fetch entirely.
type fakeItemSource struct {
	batches [][]*model.Record
	err     error
}

func (f *fakeItemSource) StreamRecords(ctx context.Context, includeItemTypes string, server model.ServerContext, fn jellyfin.RecordPageFunc) error {
	scanned := 0
	total := 0
	for _, b := range f.batches {
		total += len(b)
	}
	for _, batch := range f.batches {
		if err := fn(batch, scanned, total); err != nil {
			return err
		}
		scanned += len(batch)
	}
	return f.err
}

func testEngine(t *testing.T, st Store, items ItemSource) *Engine {
	t.Helper()
	renderer, err := render.New(render.Colors{}, nil)
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	cfg := &config.Config{
		WebhookMovies:  config.WebhookConfig{Enabled: false},
		WebhookTV:      config.WebhookConfig{Enabled: false},
		WebhookMusic:   config.WebhookConfig{Enabled: false},
		WebhookDefault: config.WebhookConfig{Enabled: false},
	}
	dispatch := discord.New(cfg, nil)
	enricher := enrich.New(nil, nil)
	return New(st, items, enricher, nil, renderer, dispatch, cfg, model.ServerContext{}, nil)
}

func movieRecord(id, name string, height int) *model.Record {
	return &model.Record{
		ID:   id,
		Name: name,
		Kind: model.KindMovie,
		Video: &model.VideoStream{
			Height: height,
			Codec:  "h264",
		},
	}
}

func TestRunEmitsNewItemForUnseenRecord(t *testing.T) {
	st := newFakeStore()
	items := &fakeItemSource{batches: [][]*model.Record{{movieRecord("m1", "Arrival", 1080)}}}
	engine := testEngine(t, st, items)

	result, err := engine.Run(context.Background(), model.SyncManual)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ItemsNew != 1 {
		t.Errorf("ItemsNew = %d, want 1", result.ItemsNew)
	}
	if result.ItemsProcessed != 1 {
		t.Errorf("ItemsProcessed = %d, want 1", result.ItemsProcessed)
	}
	if len(st.saved) != 1 {
		t.Errorf("expected record to be saved, got %d", len(st.saved))
	}
}

func TestRunEmitsUpgradedItemWhenFingerprintDiffers(t *testing.T) {
	st := newFakeStore()
	prior := movieRecord("m1", "Arrival", 720)
	st.fingerprints["m1"] = prior.Fingerprint()
	st.records["m1"] = &store.StoredRecord{Record: *prior}

	upgraded := movieRecord("m1", "Arrival", 1080)
	items := &fakeItemSource{batches: [][]*model.Record{{upgraded}}}
	engine := testEngine(t, st, items)

	result, err := engine.Run(context.Background(), model.SyncManual)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ItemsChanged != 1 {
		t.Errorf("ItemsChanged = %d, want 1", result.ItemsChanged)
	}
	if result.ItemsNew != 0 {
		t.Errorf("ItemsNew = %d, want 0", result.ItemsNew)
	}
}

func TestRunSkipsRecordWithMatchingFingerprint(t *testing.T) {
	st := newFakeStore()
	existing := movieRecord("m1", "Arrival", 1080)
	st.fingerprints["m1"] = existing.Fingerprint()
	st.records["m1"] = &store.StoredRecord{Record: *existing}

	items := &fakeItemSource{batches: [][]*model.Record{{movieRecord("m1", "Arrival", 1080)}}}
	engine := testEngine(t, st, items)

	result, err := engine.Run(context.Background(), model.SyncManual)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ItemsChanged != 0 || result.ItemsNew != 0 {
		t.Errorf("expected no_changes classification, got changed=%d new=%d", result.ItemsChanged, result.ItemsNew)
	}
}

func TestRunRecordsStartAndFinishBookkeeping(t *testing.T) {
	st := newFakeStore()
	items := &fakeItemSource{batches: [][]*model.Record{{movieRecord("m1", "Arrival", 1080)}}}
	engine := testEngine(t, st, items)

	if _, err := engine.Run(context.Background(), model.SyncManual); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.starts != 1 || st.finishes != 1 {
		t.Errorf("starts=%d finishes=%d, want 1/1", st.starts, st.finishes)
	}
}

func TestRunRejectsConcurrentInvocation(t *testing.T) {
	st := newFakeStore()
	release := make(chan struct{})
	items := &blockingItemSource{release: release}
	engine := testEngine(t, st, items)

	done := make(chan struct{})
	go func() {
		_, _ = engine.Run(context.Background(), model.SyncManual)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for !engine.Running() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	_, err := engine.Run(context.Background(), model.SyncManual)
	if err == nil {
		t.Fatal("expected concurrent Run to be rejected")
	}

	close(release)
	<-done
}

// blockingItemSource blocks StreamRecords until release is closed, letting
// tests observe the engine mid-run.
type blockingItemSource struct {
	release chan struct{}
}

func (b *blockingItemSource) StreamRecords(ctx context.Context, includeItemTypes string, server model.ServerContext, fn jellyfin.RecordPageFunc) error {
	<-b.release
	return nil
}

func TestReconcileItemUsesChangeDetector(t *testing.T) {
	st := newFakeStore()
	prior := movieRecord("m1", "Arrival", 720)
	st.records["m1"] = &store.StoredRecord{Record: *prior}
	st.fingerprints["m1"] = "stale-fingerprint-forcing-lookup"

	engine := testEngine(t, st, &fakeItemSource{})
	upgraded := movieRecord("m1", "Arrival", 1080)
	outcome, err := engine.reconcileItem(context.Background(), upgraded)
	if err != nil {
		t.Fatalf("reconcileItem: %v", err)
	}
	if outcome.action != model.ActionUpgradedItem {
		t.Fatalf("action = %s, want %s", outcome.action, model.ActionUpgradedItem)
	}
	want := detect.Detect(prior, upgraded, model.WatchPolicy{})
	if len(outcome.changes) != len(want) {
		t.Errorf("changes = %d, want %d", len(outcome.changes), len(want))
	}
}
