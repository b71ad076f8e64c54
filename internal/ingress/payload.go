// Package ingress exposes the webhook endpoint that upstream Jellyfin
// notifications hit directly, normalizing, fingerprinting, and driving the
// same enrich/render/dispatch pipeline the sync engine uses for batch
// reconciliation.
package ingress

import (
	"strings"
	"time"

	"jellydiscord/internal/model"
)

// Payload is the flat-keyed JSON body Jellyfin's webhook plugin sends, per
// spec.md §6's "Minimum recognized fields" table. Unknown fields are
// ignored by encoding/json automatically.
type Payload struct {
	ItemId   string `json:"ItemId"`
	Name     string `json:"Name"`
	ItemType string `json:"ItemType"`

	ServerId         string `json:"ServerId"`
	ServerName       string `json:"ServerName"`
	ServerVersion    string `json:"ServerVersion"`
	ServerUrl        string `json:"ServerUrl"`
	NotificationType string `json:"NotificationType"`

	Year          int    `json:"Year"`
	Overview      string `json:"Overview"`
	Tagline       string `json:"Tagline"`
	PremiereDate  string `json:"PremiereDate"`
	RunTimeTicks  int64  `json:"RunTimeTicks"`
	SeriesName    string `json:"SeriesName"`
	SeriesId      string `json:"SeriesId"`
	SeasonId      string `json:"SeasonId"`
	SeasonNumber  int    `json:"SeasonNumber"`
	EpisodeNumber int    `json:"EpisodeNumber"`
	LibraryName   string `json:"LibraryName"`
	Path          string `json:"Path"`
	Genres        string `json:"Genres"`

	Video0Codec      string  `json:"Video_0_Codec"`
	Video0Profile    string  `json:"Video_0_Profile"`
	Video0Level      string  `json:"Video_0_Level"`
	Video0Height     int     `json:"Video_0_Height"`
	Video0Width      int     `json:"Video_0_Width"`
	Video0AspectRatio string `json:"Video_0_AspectRatio"`
	Video0Interlaced bool    `json:"Video_0_Interlaced"`
	Video0FrameRate  float64 `json:"Video_0_FrameRate"`
	Video0VideoRange string  `json:"Video_0_VideoRange"`
	Video0ColorSpace string  `json:"Video_0_ColorSpace"`
	Video0ColorTransfer string `json:"Video_0_ColorTransfer"`
	Video0ColorPrimaries string `json:"Video_0_ColorPrimaries"`
	Video0PixelFormat string `json:"Video_0_PixelFormat"`
	Video0RefFrames  int     `json:"Video_0_RefFrames"`
	Video0Bitrate    int     `json:"Video_0_Bitrate"`
	Video0BitDepth   int     `json:"Video_0_BitDepth"`

	Audio0Codec      string `json:"Audio_0_Codec"`
	Audio0Language   string `json:"Audio_0_Language"`
	Audio0Channels   int    `json:"Audio_0_Channels"`
	Audio0Bitrate    int    `json:"Audio_0_Bitrate"`
	Audio0SampleRate int    `json:"Audio_0_SampleRate"`
	Audio0Default    bool   `json:"Audio_0_Default"`

	Subtitle0Codec    string `json:"Subtitle_0_Codec"`
	Subtitle0Language string `json:"Subtitle_0_Language"`
	Subtitle0Default  bool   `json:"Subtitle_0_Default"`
	Subtitle0Forced   bool   `json:"Subtitle_0_Forced"`
	Subtitle0External bool   `json:"Subtitle_0_External"`

	ProviderImdb     string `json:"Provider_imdb"`
	ProviderTmdb     string `json:"Provider_tmdb"`
	ProviderTvdb     string `json:"Provider_tvdb"`
	ProviderTvdbSlug string `json:"Provider_tvdbslug"`
}

// Validate checks the minimum required fields spec.md §6 names; a payload
// failing this is rejected with 400 before touching the pipeline.
func (p Payload) Validate() error {
	if strings.TrimSpace(p.ItemId) == "" {
		return errMissingField("ItemId")
	}
	if strings.TrimSpace(p.Name) == "" {
		return errMissingField("Name")
	}
	if strings.TrimSpace(p.ItemType) == "" {
		return errMissingField("ItemType")
	}
	return nil
}

type missingFieldError string

func (e missingFieldError) Error() string { return "missing required field: " + string(e) }

func errMissingField(name string) error { return missingFieldError(name) }

// ToRecord normalizes the payload into the bridge's canonical Media Record,
// using the same conversion contract as the Jellyfin client's converter.
// Callers that successfully pull the full item via GetItem should prefer
// that conversion for richer media-stream data; ToRecord is the
// payload-only fallback.
func (p Payload) ToRecord() *model.Record {
	record := &model.Record{
		ID:            p.ItemId,
		Name:          p.Name,
		Kind:          kindFor(p.ItemType),
		SeriesID:      p.SeriesId,
		SeriesName:    p.SeriesName,
		SeasonID:      p.SeasonId,
		SeasonNumber:  p.SeasonNumber,
		EpisodeNumber: p.EpisodeNumber,
		Year:          p.Year,
		Overview:      p.Overview,
		Tagline:       p.Tagline,
		RuntimeMillis: p.RunTimeTicks / ticksPerMillisecond,
		PremiereAt:    parseTimeLoose(p.PremiereDate),
		IngestedAt:    time.Now().UTC(),
		Server: model.ServerContext{
			ID:      p.ServerId,
			Name:    p.ServerName,
			Version: p.ServerVersion,
			URL:     p.ServerUrl,
		},
		File: model.FileInfo{Path: p.Path, LibraryName: p.LibraryName},
	}
	if p.Genres != "" {
		record.Genres = splitComma(p.Genres)
	}
	record.Providers = model.ProviderIDs{
		IMDB:     p.ProviderImdb,
		TMDB:     p.ProviderTmdb,
		TVDB:     p.ProviderTvdb,
		TVDBSlug: p.ProviderTvdbSlug,
	}
	if p.Video0Codec != "" || p.Video0Height > 0 {
		record.Video = &model.VideoStream{
			Height: p.Video0Height, Width: p.Video0Width, Codec: p.Video0Codec,
			Profile: p.Video0Profile, Level: p.Video0Level, Range: p.Video0VideoRange,
			FrameRate: p.Video0FrameRate, Bitrate: p.Video0Bitrate, BitDepth: p.Video0BitDepth,
			ColorSpace: p.Video0ColorSpace, ColorTransfer: p.Video0ColorTransfer,
			ColorPrimaries: p.Video0ColorPrimaries, PixelFormat: p.Video0PixelFormat,
			AspectRatio: p.Video0AspectRatio, Interlaced: p.Video0Interlaced, RefFrames: p.Video0RefFrames,
		}
	}
	if p.Audio0Codec != "" {
		record.Audio = &model.AudioStream{
			Codec: p.Audio0Codec, Channels: p.Audio0Channels, Language: p.Audio0Language,
			Bitrate: p.Audio0Bitrate, SampleRate: p.Audio0SampleRate, Default: p.Audio0Default,
		}
	}
	if p.Subtitle0Codec != "" {
		record.Subtitle = &model.SubtitleStream{
			Codec: p.Subtitle0Codec, Language: p.Subtitle0Language,
			Default: p.Subtitle0Default, Forced: p.Subtitle0Forced, External: p.Subtitle0External,
		}
	}
	return record
}

const ticksPerMillisecond = 10000

var payloadKindByType = map[string]model.Kind{
	"Movie":       model.KindMovie,
	"Episode":     model.KindEpisode,
	"Season":      model.KindSeason,
	"Series":      model.KindSeries,
	"Audio":       model.KindAudio,
	"MusicAlbum":  model.KindMusicAlbum,
	"MusicArtist": model.KindMusicArtist,
	"Photo":       model.KindPhoto,
}

func kindFor(itemType string) model.Kind {
	if kind, ok := payloadKindByType[itemType]; ok {
		return kind
	}
	return model.KindOther
}

func splitComma(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseTimeLoose(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}
