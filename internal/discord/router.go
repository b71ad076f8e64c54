package discord

import "jellydiscord/internal/model"

// Target names one of the four configured webhook slots.
type Target string

const (
	TargetMovies  Target = "movies"
	TargetTV      Target = "tv"
	TargetMusic   Target = "music"
	TargetDefault Target = "default"
)

// routeFor picks the webhook target bound to a record's kind, per spec.md
// §4.G's routing table.
func routeFor(kind model.Kind) Target {
	switch kind {
	case model.KindMovie:
		return TargetMovies
	case model.KindSeries, model.KindSeason, model.KindEpisode:
		return TargetTV
	case model.KindAudio, model.KindMusicAlbum, model.KindMusicArtist:
		return TargetMusic
	default:
		return TargetDefault
	}
}
