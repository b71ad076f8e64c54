package jellyfin

import (
	"strings"
	"time"

	"jellydiscord/internal/model"
)

var kindByType = map[string]model.Kind{
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
	if kind, ok := kindByType[itemType]; ok {
		return kind
	}
	return model.KindOther
}

// seasonNumberFor implements spec.md §4.B's per-kind season-number rule: a
// Season item's own number is its IndexNumber, while an Episode's season
// number is its parent season's IndexNumber (ParentIndexNumber).
func seasonNumberFor(kind model.Kind, item *wireItem) int {
	switch kind {
	case model.KindSeason:
		return item.IndexNumber
	case model.KindEpisode:
		return item.ParentIndexNum
	default:
		return 0
	}
}

// episodeNumberFor is always IndexNumber, but only meaningful for Episode
// items.
func episodeNumberFor(kind model.Kind, item *wireItem) int {
	if kind != model.KindEpisode {
		return 0
	}
	return item.IndexNumber
}

func namesOf(named []wireNamed) []string {
	if len(named) == 0 {
		return nil
	}
	out := make([]string, 0, len(named))
	for _, n := range named {
		if n.Name != "" {
			out = append(out, n.Name)
		}
	}
	return out
}

func parseJellyfinTime(value string) time.Time {
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

// ConvertToRecord maps a Jellyfin API item into the bridge's canonical
// Media Record, selecting the primary video/audio/subtitle stream (the
// first of each type Jellyfin reports).
func ConvertToRecord(item *wireItem, server model.ServerContext) *model.Record {
	if item == nil {
		return nil
	}

	kind := kindFor(item.Type)
	record := &model.Record{
		ID:             item.ID,
		Name:           item.Name,
		Kind:           kind,
		SeriesID:       item.SeriesID,
		SeriesName:     item.SeriesName,
		SeasonID:       item.SeasonID,
		SeasonNumber:   seasonNumberFor(kind, item),
		EpisodeNumber:  episodeNumberFor(kind, item),
		ParentID:       item.ParentID,
		Year:           item.ProductionYear,
		Overview:       item.Overview,
		OfficialRating: item.OfficialRating,
		Genres:         item.Genres,
		Studios:        namesOf(item.Studios),
		Tags:           item.Tags,
		Album:          item.Album,
		Artists:        item.Artists,
		Server:         server,
		RuntimeMillis:  item.RunTimeTicks / ticksPerMillisecond,
		CreatedAt:      parseJellyfinTime(item.DateCreated),
		PremiereAt:     parseJellyfinTime(item.PremiereDate),
		IngestedAt:     time.Now().UTC(),
	}
	if len(item.Taglines) > 0 {
		record.Tagline = item.Taglines[0]
	}
	if albumArtist := namesOf(item.AlbumArtists); len(albumArtist) > 0 {
		record.AlbumArtist = albumArtist[0]
	}
	record.File = model.FileInfo{Path: item.Path, Size: item.Size}
	record.Providers = providerIDsFrom(item.ProviderIds)
	record.Images = imageTagsFrom(item.ImageTags)
	record.Images.ParentPrimary = item.ParentPrimaryImageTag
	record.Images.ParentLogo = item.ParentLogoImageTag
	record.Images.SeriesPrimary = item.SeriesPrimaryImageTag
	record.Images.SeriesLogo = item.SeriesLogoImageTag
	record.Images.SeriesThumb = item.SeriesThumbImageTag

	for _, stream := range item.MediaStreams {
		switch strings.ToLower(stream.Type) {
		case "video":
			if record.Video == nil {
				record.Video = &model.VideoStream{
					Height: stream.Height, Width: stream.Width, Codec: stream.Codec,
					Profile: stream.Profile, Level: stream.Level, Range: stream.VideoRange,
					FrameRate: stream.RealFrameRate, Bitrate: stream.BitRate, BitDepth: stream.BitDepth,
					ColorSpace: stream.ColorSpace, ColorTransfer: stream.ColorTransfer,
					ColorPrimaries: stream.ColorPrimaries, PixelFormat: stream.PixelFormat,
					AspectRatio: stream.AspectRatio, Interlaced: stream.IsInterlaced, RefFrames: stream.RefFrames,
				}
			}
		case "audio":
			if record.Audio == nil {
				record.Audio = &model.AudioStream{
					Codec: stream.Codec, Channels: stream.Channels, Language: stream.Language,
					Bitrate: stream.BitRate, SampleRate: stream.SampleRate, Default: stream.IsDefault,
				}
			}
		case "subtitle":
			if record.Subtitle == nil {
				record.Subtitle = &model.SubtitleStream{
					Codec: stream.Codec, Language: stream.Language, Default: stream.IsDefault,
					Forced: stream.IsForced, External: stream.IsExternal,
				}
			}
		}
	}

	return record
}

func providerIDsFrom(ids map[string]string) model.ProviderIDs {
	if ids == nil {
		return model.ProviderIDs{}
	}
	return model.ProviderIDs{
		IMDB:     lookupCaseInsensitive(ids, "Imdb"),
		TMDB:     lookupCaseInsensitive(ids, "Tmdb"),
		TVDB:     lookupCaseInsensitive(ids, "Tvdb"),
		TVDBSlug: lookupCaseInsensitive(ids, "TvdbSlug"),
	}
}

func imageTagsFrom(tags map[string]string) model.ImageTags {
	if tags == nil {
		return model.ImageTags{}
	}
	return model.ImageTags{
		Primary:  tags["Primary"],
		Backdrop: tags["Backdrop"],
		Logo:     tags["Logo"],
		Thumb:    tags["Thumb"],
		Banner:   tags["Banner"],
	}
}

func lookupCaseInsensitive(m map[string]string, key string) string {
	if v, ok := m[key]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
