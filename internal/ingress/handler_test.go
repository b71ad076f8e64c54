package ingress

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"jellydiscord/internal/config"
	"jellydiscord/internal/discord"
	"jellydiscord/internal/enrich"
	"jellydiscord/internal/model"
	"jellydiscord/internal/render"
	"jellydiscord/internal/store"
)

type fakeStore struct {
	fingerprints map[string]string
	records      map[string]*store.StoredRecord
	saved        []*model.Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{fingerprints: map[string]string{}, records: map[string]*store.StoredRecord{}}
}

func (f *fakeStore) GetFingerprint(ctx context.Context, id string) (string, bool, error) {
	fp, ok := f.fingerprints[id]
	return fp, ok, nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (*store.StoredRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, errNotFound
	}
	return rec, nil
}

func (f *fakeStore) Save(ctx context.Context, record *model.Record) error {
	f.saved = append(f.saved, record)
	f.fingerprints[record.ID] = record.Fingerprint()
	f.records[record.ID] = &store.StoredRecord{Record: *record}
	return nil
}

type notFoundError string

func (e notFoundError) Error() string { return string(e) }

const errNotFound = notFoundError("not found")

func testHandler(t *testing.T, st Store) *Handler {
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
	return New(st, nil, nil, enricher, nil, renderer, dispatch, cfg, model.ServerContext{}, nil)
}

func postWebhook(t *testing.T, h *Handler, body map[string]any) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest("POST", "/webhook", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	var resp Response
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return rec, resp
}

func TestWebhookRejectsMissingRequiredFields(t *testing.T) {
	h := testHandler(t, newFakeStore())
	rec, _ := postWebhook(t, h, map[string]any{"Name": "Arrival"})
	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestWebhookNewItemThenNoChangesOnRepeat(t *testing.T) {
	st := newFakeStore()
	h := testHandler(t, st)
	body := map[string]any{
		"ItemId": "m1", "Name": "Arrival", "ItemType": "Movie",
		"Video_0_Height": 1080, "Video_0_Codec": "h264",
	}

	_, first := postWebhook(t, h, body)
	if first.Action != string(model.ActionNewItem) {
		t.Fatalf("first action = %s, want %s", first.Action, model.ActionNewItem)
	}

	_, second := postWebhook(t, h, body)
	if second.Action != string(model.ActionNoChanges) {
		t.Fatalf("second action = %s, want %s", second.Action, model.ActionNoChanges)
	}
}

func TestWebhookUpgradedItemWhenStreamsChange(t *testing.T) {
	st := newFakeStore()
	h := testHandler(t, st)
	base := map[string]any{
		"ItemId": "m1", "Name": "Arrival", "ItemType": "Movie",
		"Video_0_Height": 720, "Video_0_Codec": "h264",
	}
	if _, resp := postWebhook(t, h, base); resp.Action != string(model.ActionNewItem) {
		t.Fatalf("setup action = %s, want %s", resp.Action, model.ActionNewItem)
	}

	upgraded := map[string]any{
		"ItemId": "m1", "Name": "Arrival", "ItemType": "Movie",
		"Video_0_Height": 2160, "Video_0_Codec": "hevc",
	}
	_, resp := postWebhook(t, h, upgraded)
	if resp.Action != string(model.ActionUpgradedItem) {
		t.Fatalf("action = %s, want %s", resp.Action, model.ActionUpgradedItem)
	}
	if resp.ChangesCount == 0 {
		t.Error("expected a non-zero changes count for a resolution+codec upgrade")
	}
}

func TestPayloadToRecordMapsVideoStream(t *testing.T) {
	p := Payload{
		ItemId: "m1", Name: "Arrival", ItemType: "Movie",
		Genres:         "Drama, Sci-Fi",
		Video0Height:   1080,
		Video0Codec:    "h264",
		ProviderImdb:   "tt2543164",
	}
	record := p.ToRecord()
	if record.Video == nil || record.Video.Height != 1080 {
		t.Fatalf("expected video stream with height 1080, got %+v", record.Video)
	}
	if len(record.Genres) != 2 {
		t.Errorf("Genres = %v, want 2 entries", record.Genres)
	}
	if record.Providers.IMDB != "tt2543164" {
		t.Errorf("Providers.IMDB = %q", record.Providers.IMDB)
	}
}
