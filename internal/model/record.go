// Package model defines the canonical data types shared across the bridge:
// the Media Record and the small value types derived from it.
package model

import (
	"fmt"
	"time"
)

// Kind enumerates the library item types the bridge understands.
type Kind string

const (
	KindMovie      Kind = "Movie"
	KindEpisode    Kind = "Episode"
	KindSeason     Kind = "Season"
	KindSeries     Kind = "Series"
	KindAudio      Kind = "Audio"
	KindMusicAlbum Kind = "MusicAlbum"
	KindMusicArtist Kind = "MusicArtist"
	KindPhoto      Kind = "Photo"
	KindOther      Kind = "Other"
)

// VideoStream describes the primary video track of a Media Record.
type VideoStream struct {
	Height        int
	Width         int
	Codec         string
	Profile       string
	Level         string
	Range         string // defaults to "SDR" when absent
	FrameRate     float64
	Bitrate       int
	BitDepth      int
	ColorSpace    string
	ColorTransfer string
	ColorPrimaries string
	PixelFormat   string
	AspectRatio   string
	Interlaced    bool
	RefFrames     int
}

// AudioStream describes the primary audio track of a Media Record.
type AudioStream struct {
	Codec      string
	Channels   int
	Language   string
	Bitrate    int
	SampleRate int
	Default    bool
}

// SubtitleStream describes the primary subtitle track of a Media Record.
type SubtitleStream struct {
	Codec    string
	Language string
	Default  bool
	Forced   bool
	External bool
}

// ProviderIDs holds the external identifiers Jellyfin exposes for an item.
type ProviderIDs struct {
	IMDB     string
	TMDB     string
	TVDB     string
	TVDBSlug string
}

// HasAny reports whether at least one provider identifier is populated.
func (p ProviderIDs) HasAny() bool {
	return p.IMDB != "" || p.TMDB != "" || p.TVDB != ""
}

// ImageTags captures the etag-style image tags Jellyfin uses for cache busting.
type ImageTags struct {
	Primary  string
	Backdrop string
	Logo     string
	Thumb    string
	Banner   string

	ParentPrimary string
	ParentLogo    string
	SeriesPrimary string
	SeriesLogo    string
	SeriesThumb   string
}

// ServerContext records where a Media Record came from.
type ServerContext struct {
	ID      string
	Name    string
	Version string
	URL     string
}

// FileInfo captures the on-disk properties of a Media Record.
type FileInfo struct {
	Path        string
	Size        int64
	LibraryName string
}

// Record is the canonical internal representation of one library item.
//
// Invariants: ID is unique and immutable for the lifetime of the item
// upstream. Kind is never empty. Stream fields are populated only when
// that stream exists on the source item. Sequence fields (Genres,
// Studios, Tags, Artists) are order-preserving but semantically
// unordered sets of strings.
type Record struct {
	ID   string
	Name string
	Kind Kind

	SeriesID      string
	SeriesName    string
	SeasonID      string
	SeasonNumber  int
	EpisodeNumber int
	ParentID      string

	Year           int
	Overview       string
	Tagline        string
	OfficialRating string
	Genres         []string
	Studios        []string
	Tags           []string
	Album          string
	Artists        []string
	AlbumArtist    string

	Video    *VideoStream
	Audio    *AudioStream
	Subtitle *SubtitleStream

	Providers ProviderIDs
	File      FileInfo
	Images    ImageTags
	Server    ServerContext

	CreatedAt   time.Time
	ModifiedAt  time.Time
	PremiereAt  time.Time
	IngestedAt  time.Time

	RuntimeMillis int64

	fingerprint string
}

// SeasonNumberPadded returns the season number zero-padded to two digits.
func (r *Record) SeasonNumberPadded() string {
	return fmt.Sprintf("%02d", r.SeasonNumber)
}

// EpisodeNumberPadded returns the episode number zero-padded to three digits.
func (r *Record) EpisodeNumberPadded() string {
	return fmt.Sprintf("%03d", r.EpisodeNumber)
}

// VideoRangeOrDefault returns the video dynamic range, defaulting to SDR.
func (r *Record) VideoRangeOrDefault() string {
	if r.Video == nil || r.Video.Range == "" {
		return "SDR"
	}
	return r.Video.Range
}
