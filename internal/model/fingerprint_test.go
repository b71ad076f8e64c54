package model

import "testing"

func sampleRecord() *Record {
	return &Record{
		ID:   "item-1",
		Name: "The Matrix",
		Kind: KindMovie,
		Video: &VideoStream{
			Height: 1080, Width: 1920, Codec: "h264", Profile: "High", Range: "SDR",
			FrameRate: 23.976, Bitrate: 8_000_000, BitDepth: 8,
		},
		Audio: &AudioStream{Codec: "ac3", Channels: 6, Bitrate: 640_000, SampleRate: 48_000},
		File:  FileInfo{Path: "/media/movies/the-matrix.mkv", Size: 8_000_000_000},
	}
}

func TestFingerprintStableAcrossVolatileFields(t *testing.T) {
	r1 := sampleRecord()
	r2 := sampleRecord()
	r2.IngestedAt = r1.IngestedAt.AddDate(0, 0, 1)
	r2.CreatedAt = r1.CreatedAt.AddDate(1, 0, 0)

	if r1.Fingerprint() != r2.Fingerprint() {
		t.Fatalf("expected fingerprint to ignore volatile timestamp fields")
	}
}

func TestFingerprintCachedOnInstance(t *testing.T) {
	r := sampleRecord()
	first := r.Fingerprint()
	r.Name = "changed after first computation"
	if r.Fingerprint() != first {
		t.Fatalf("expected cached fingerprint to survive a later mutation without invalidation")
	}

	r.InvalidateFingerprint()
	if r.Fingerprint() == first {
		t.Fatalf("expected fingerprint to change after invalidation and mutation")
	}
}

func TestFingerprintDiffersOnTrackedFieldChange(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Record)
	}{
		{"id", func(r *Record) { r.ID = "item-2" }},
		{"name", func(r *Record) { r.Name = "The Matrix Reloaded" }},
		{"kind", func(r *Record) { r.Kind = KindEpisode }},
		{"video height", func(r *Record) { r.Video.Height = 2160 }},
		{"video codec", func(r *Record) { r.Video.Codec = "hevc" }},
		{"video range", func(r *Record) { r.Video.Range = "HDR10" }},
		{"audio codec", func(r *Record) { r.Audio.Codec = "eac3" }},
		{"audio channels", func(r *Record) { r.Audio.Channels = 2 }},
		{"file path", func(r *Record) { r.File.Path = "/media/movies/the-matrix-remux.mkv" }},
		{"video present to absent", func(r *Record) { r.Video = nil }},
		{"audio present to absent", func(r *Record) { r.Audio = nil }},
	}

	base := sampleRecord().Fingerprint()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := sampleRecord()
			tc.mutate(r)
			if r.Fingerprint() == base {
				t.Fatalf("expected fingerprint to change when %s differs", tc.name)
			}
		})
	}
}

func TestFingerprintIdenticalRecordsMatch(t *testing.T) {
	r1 := sampleRecord()
	r2 := sampleRecord()
	if r1.Fingerprint() != r2.Fingerprint() {
		t.Fatalf("expected identical records to produce the same fingerprint")
	}
}

func TestVideoRangeOrDefaultIsSDRWhenAbsent(t *testing.T) {
	r := &Record{ID: "x"}
	if got := r.VideoRangeOrDefault(); got != "SDR" {
		t.Fatalf("expected SDR default, got %q", got)
	}
	r.Video = &VideoStream{}
	if got := r.VideoRangeOrDefault(); got != "SDR" {
		t.Fatalf("expected SDR default for empty range field, got %q", got)
	}
}
