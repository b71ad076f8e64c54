package detect

import (
	"testing"

	"jellydiscord/internal/model"
)

func baseRecord() *model.Record {
	return &model.Record{
		ID:   "item-1",
		Name: "The Matrix",
		Kind: model.KindMovie,
		Video: &model.VideoStream{
			Height: 1080,
			Codec:  "h264",
			Range:  "SDR",
		},
		Audio: &model.AudioStream{
			Codec:    "ac3",
			Channels: 6,
		},
		File:      model.FileInfo{Size: 8_000_000_000},
		Providers: model.ProviderIDs{IMDB: "tt0133093"},
	}
}

func TestDetectNoChangesOnIdenticalRecord(t *testing.T) {
	r := baseRecord()
	changes := Detect(r, r, model.WatchPolicy{})
	if len(changes) != 0 {
		t.Fatalf("expected no changes, got %+v", changes)
	}
}

func TestDetectResolutionCodecAndHDRUpgrade(t *testing.T) {
	old := baseRecord()
	upgraded := baseRecord()
	upgraded.Video = &model.VideoStream{Height: 2160, Codec: "hevc", Range: "HDR10"}

	changes := Detect(old, upgraded, model.WatchPolicy{})
	types := make(map[model.ChangeType]bool)
	for _, c := range changes {
		types[c.Type] = true
	}
	for _, want := range []model.ChangeType{model.ChangeResolution, model.ChangeCodec, model.ChangeHDRStatus} {
		if !types[want] {
			t.Errorf("expected change type %s to be present, got %+v", want, changes)
		}
	}
	if len(changes) != 3 {
		t.Fatalf("expected exactly 3 changes, got %d: %+v", len(changes), changes)
	}
}

func TestDetectFileSizeSuppressesSmallDelta(t *testing.T) {
	old := baseRecord()
	newer := baseRecord()
	newer.File.Size = old.File.Size + old.File.Size/100 // 1% delta

	changes := Detect(old, newer, model.WatchPolicy{})
	if len(changes) != 0 {
		t.Fatalf("expected small file size delta to be suppressed, got %+v", changes)
	}
}

func TestDetectFileSizeEmitsSignificantDelta(t *testing.T) {
	old := baseRecord()
	newer := baseRecord()
	newer.File.Size = old.File.Size * 2

	changes := Detect(old, newer, model.WatchPolicy{})
	if len(changes) != 1 || changes[0].Type != model.ChangeFileSize {
		t.Fatalf("expected a single file_size change, got %+v", changes)
	}
}

func TestDetectProviderIDsNullToNullSuppressed(t *testing.T) {
	old := baseRecord()
	old.Providers = model.ProviderIDs{}
	newer := baseRecord()
	newer.Providers = model.ProviderIDs{}

	changes := Detect(old, newer, model.WatchPolicy{})
	if len(changes) != 0 {
		t.Fatalf("expected no provider change when both null, got %+v", changes)
	}
}

func TestDetectProviderIDsChangeEmitted(t *testing.T) {
	old := baseRecord()
	newer := baseRecord()
	newer.Providers.IMDB = "tt9999999"

	changes := Detect(old, newer, model.WatchPolicy{})
	if len(changes) != 1 || changes[0].Type != model.ChangeProviderIDs {
		t.Fatalf("expected a single provider_ids change, got %+v", changes)
	}
}

func TestDetectPolicyDisablesType(t *testing.T) {
	old := baseRecord()
	upgraded := baseRecord()
	upgraded.Video = &model.VideoStream{Height: 2160, Codec: "hevc", Range: "HDR10"}

	disabled := false
	policy := model.WatchPolicy{Resolution: &disabled}
	changes := Detect(old, upgraded, policy)
	for _, c := range changes {
		if c.Type == model.ChangeResolution {
			t.Fatalf("expected resolution changes to be suppressed by policy, got %+v", changes)
		}
	}
}

func TestDetectUnknownAndSDRDefaults(t *testing.T) {
	old := &model.Record{ID: "x"}
	newer := &model.Record{ID: "x", Video: &model.VideoStream{Codec: "hevc"}, Audio: &model.AudioStream{Codec: "eac3"}}

	changes := Detect(old, newer, model.WatchPolicy{})
	found := map[model.ChangeType]model.Change{}
	for _, c := range changes {
		found[c.Type] = c
	}
	codecChange, ok := found[model.ChangeCodec]
	if !ok || codecChange.OldValue != "Unknown" {
		t.Fatalf("expected codec change from Unknown, got %+v", found[model.ChangeCodec])
	}
	if hdr, ok := found[model.ChangeHDRStatus]; ok {
		t.Fatalf("expected absent video ranges on both sides to default to SDR with no hdr_status change, got %+v", hdr)
	}
}
