package jellyfin

import (
	"testing"

	"jellydiscord/internal/model"
)

func TestConvertToRecordMovie(t *testing.T) {
	item := &wireItem{
		ID:             "m1",
		Name:           "The Matrix",
		Type:           "Movie",
		ProductionYear: 1999,
		RunTimeTicks:   81_000_000_000, // 8100s in 100ns ticks
		ProviderIds:    map[string]string{"Imdb": "tt0133093"},
		MediaStreams: []wireMediaStream{
			{Type: "Video", Codec: "h264", Height: 1080, Width: 1920},
			{Type: "Audio", Codec: "ac3", Channels: 6},
		},
	}

	r := ConvertToRecord(item, model.ServerContext{})
	if r.Kind != model.KindMovie {
		t.Fatalf("expected Movie kind, got %s", r.Kind)
	}
	if r.Video == nil || r.Video.Height != 1080 || r.Video.Codec != "h264" {
		t.Fatalf("expected primary video stream populated, got %+v", r.Video)
	}
	if r.Audio == nil || r.Audio.Codec != "ac3" || r.Audio.Channels != 6 {
		t.Fatalf("expected primary audio stream populated, got %+v", r.Audio)
	}
	if r.Providers.IMDB != "tt0133093" {
		t.Fatalf("expected imdb provider id, got %q", r.Providers.IMDB)
	}
	if got := r.RuntimeMillis; got != 8_100_000 {
		t.Fatalf("expected runtime of 8,100,000ms, got %d", got)
	}
	if r.VideoRangeOrDefault() != "SDR" {
		t.Fatalf("expected default video range SDR, got %q", r.VideoRangeOrDefault())
	}
}

func TestConvertToRecordSeasonNumberRules(t *testing.T) {
	season := &wireItem{ID: "s1", Type: "Season", IndexNumber: 2}
	if r := ConvertToRecord(season, model.ServerContext{}); r.SeasonNumber != 2 {
		t.Fatalf("expected season number from IndexNumber, got %d", r.SeasonNumber)
	}

	episode := &wireItem{ID: "e1", Type: "Episode", IndexNumber: 5, ParentIndexNum: 3}
	r := ConvertToRecord(episode, model.ServerContext{})
	if r.SeasonNumber != 3 {
		t.Fatalf("expected episode season number from ParentIndexNumber, got %d", r.SeasonNumber)
	}
	if r.EpisodeNumber != 5 {
		t.Fatalf("expected episode number from IndexNumber, got %d", r.EpisodeNumber)
	}
	if r.SeasonNumberPadded() != "03" || r.EpisodeNumberPadded() != "005" {
		t.Fatalf("expected zero-padded season/episode, got %q/%q", r.SeasonNumberPadded(), r.EpisodeNumberPadded())
	}
}

func TestConvertToRecordGenresAndStudiosNormalizeToStrings(t *testing.T) {
	item := &wireItem{
		ID:      "m2",
		Type:    "Movie",
		Genres:  []string{"Action", "Sci-Fi"},
		Studios: []wireNamed{{Name: "Warner Bros."}, {Name: ""}},
	}
	r := ConvertToRecord(item, model.ServerContext{})
	if len(r.Genres) != 2 || r.Genres[0] != "Action" {
		t.Fatalf("expected genres preserved in order, got %+v", r.Genres)
	}
	if len(r.Studios) != 1 || r.Studios[0] != "Warner Bros." {
		t.Fatalf("expected blank-named studio dropped, got %+v", r.Studios)
	}
}

func TestConvertToRecordNilItemReturnsNil(t *testing.T) {
	if r := ConvertToRecord(nil, model.ServerContext{}); r != nil {
		t.Fatalf("expected nil record for nil item, got %+v", r)
	}
}

func TestConvertToRecordUnknownTypeFallsBackToOther(t *testing.T) {
	item := &wireItem{ID: "x1", Name: "Mystery Blob", Type: "Playlist"}
	r := ConvertToRecord(item, model.ServerContext{})
	if r.Kind != model.KindOther {
		t.Fatalf("expected unknown item type to map to Other, got %s", r.Kind)
	}
	if r.ID != "x1" || r.Name != "Mystery Blob" {
		t.Fatalf("expected id/name preserved on the minimal mapping, got %+v", r)
	}
}

func TestConvertToRecordProviderIDsCaseInsensitive(t *testing.T) {
	item := &wireItem{
		ID:   "m3",
		Type: "Movie",
		ProviderIds: map[string]string{
			"TMDB":     "603",
			"tvdbslug": "the-matrix",
		},
	}
	r := ConvertToRecord(item, model.ServerContext{})
	if r.Providers.TMDB != "603" {
		t.Fatalf("expected case-insensitive tmdb lookup, got %q", r.Providers.TMDB)
	}
	if r.Providers.TVDBSlug != "the-matrix" {
		t.Fatalf("expected case-insensitive tvdbslug lookup, got %q", r.Providers.TVDBSlug)
	}
}
