package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"jellydiscord/internal/model"
	"jellydiscord/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "jellydiscord.db")
	s, err := store.OpenPath(dbPath)
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(id, name string) *model.Record {
	return &model.Record{
		ID:   id,
		Name: name,
		Kind: model.KindMovie,
		Video: &model.VideoStream{
			Height: 1080, Width: 1920, Codec: "h264", Range: "SDR",
		},
		Audio: &model.AudioStream{Codec: "aac", Channels: 2},
		File:  model.FileInfo{Path: "/media/" + id + ".mkv", Size: 1024},
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("item-1", "Sample Movie")
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	stored, err := s.Get(ctx, "item-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored == nil {
		t.Fatal("expected stored record, got nil")
	}
	if stored.Record.Name != "Sample Movie" {
		t.Fatalf("unexpected name: %q", stored.Record.Name)
	}
	if stored.Record.Video == nil || stored.Record.Video.Codec != "h264" {
		t.Fatalf("expected video stream to round-trip, got %#v", stored.Record.Video)
	}

	fingerprint, ok, err := s.GetFingerprint(ctx, "item-1")
	if err != nil {
		t.Fatalf("GetFingerprint failed: %v", err)
	}
	if !ok || fingerprint != rec.Fingerprint() {
		t.Fatalf("expected fingerprint %q, got %q (ok=%v)", rec.Fingerprint(), fingerprint, ok)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := openTestStore(t)
	stored, err := s.Get(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored != nil {
		t.Fatalf("expected nil for missing record, got %#v", stored)
	}
}

func TestSaveBatchSavesAllRecordsAndUpdatesStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	records := []*model.Record{
		sampleRecord("item-1", "First"),
		sampleRecord("item-2", "Second"),
		sampleRecord("item-3", "Third"),
	}
	result, err := s.SaveBatch(ctx, records)
	if err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}
	if result.Saved != 3 {
		t.Fatalf("expected 3 saved, got %d (failed=%v)", result.Saved, result.Failed)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.ByKind[model.KindMovie] != 3 {
		t.Fatalf("expected 3 movies in stats, got %d", stats.ByKind[model.KindMovie])
	}
	if stats.Total != 3 {
		t.Fatalf("expected total of 3, got %d", stats.Total)
	}
	if stats.RecentAdditions != 3 {
		t.Fatalf("expected 3 recent additions, got %d", stats.RecentAdditions)
	}
}

func TestSaveUpsertsExistingRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("item-1", "Original Name")
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("initial Save failed: %v", err)
	}

	rec.Name = "Renamed"
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	stored, err := s.Get(ctx, "item-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Record.Name != "Renamed" {
		t.Fatalf("expected upserted name, got %q", stored.Record.Name)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.ByKind[model.KindMovie] != 1 {
		t.Fatalf("expected exactly one row after upsert, got %d", stats.ByKind[model.KindMovie])
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("item-1", "To Delete")
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Delete(ctx, "item-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	stored, err := s.Get(ctx, "item-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored != nil {
		t.Fatalf("expected record to be gone after delete, got %#v", stored)
	}
}

func TestSyncStatusRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	started := time.Now().UTC()

	if err := s.RecordSyncStart(ctx, model.SyncPeriodicBackground, started); err != nil {
		t.Fatalf("RecordSyncStart failed: %v", err)
	}
	if err := s.RecordSyncFinish(ctx, started.Add(time.Second), 10, 3, 1, nil); err != nil {
		t.Fatalf("RecordSyncFinish failed: %v", err)
	}

	status, err := s.LastSync(ctx)
	if err != nil {
		t.Fatalf("LastSync failed: %v", err)
	}
	if status.LastSyncType != model.SyncPeriodicBackground {
		t.Fatalf("unexpected sync type: %v", status.LastSyncType)
	}
	if status.ItemsScanned != 10 || status.ItemsChanged != 3 || status.ItemsNew != 1 {
		t.Fatalf("unexpected counters: %#v", status)
	}
}

func TestRatingsCacheExpiry(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.PutCached(ctx, "tmdb:movie:123", "tmdb", `{"rating":8.1}`, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("PutCached failed: %v", err)
	}
	payload, hit, err := s.GetCached(ctx, "tmdb:movie:123")
	if err != nil {
		t.Fatalf("GetCached failed: %v", err)
	}
	if !hit || payload == "" {
		t.Fatalf("expected cache hit, got hit=%v payload=%q", hit, payload)
	}

	if err := s.PutCached(ctx, "tmdb:movie:456", "tmdb", `{"rating":5}`, time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("PutCached failed: %v", err)
	}
	_, hit, err = s.GetCached(ctx, "tmdb:movie:456")
	if err != nil {
		t.Fatalf("GetCached failed: %v", err)
	}
	if hit {
		t.Fatal("expected expired cache entry to miss")
	}
}

func TestVacuumRecordsTimestamp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, hit, err := s.GetState(ctx, "last_vacuum_at"); err != nil {
		t.Fatalf("GetState failed: %v", err)
	} else if hit {
		t.Fatal("expected no last_vacuum_at before the first Vacuum")
	}

	if err := s.Vacuum(ctx); err != nil {
		t.Fatalf("Vacuum failed: %v", err)
	}

	value, hit, err := s.GetState(ctx, "last_vacuum_at")
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if !hit || value == "" {
		t.Fatal("expected Vacuum to record last_vacuum_at")
	}
}

func TestStatsReportsTotalsAndDiskSize(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, sampleRecord("item-1", "First")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Save(ctx, sampleRecord("item-2", "Second")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 2 {
		t.Fatalf("expected total of 2, got %d", stats.Total)
	}
	if stats.RecentAdditions != 2 {
		t.Fatalf("expected 2 recent additions, got %d", stats.RecentAdditions)
	}
	if stats.DiskSizeBytes <= 0 {
		t.Fatalf("expected non-zero on-disk size, got %d", stats.DiskSizeBytes)
	}
}
