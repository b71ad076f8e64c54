package render

import "jellydiscord/internal/model"

// Colors is the configured embed color palette (see config.ColorPalette).
type Colors struct {
	NewItem     int
	Resolution  int
	Codec       int
	AudioCodec  int
	HDRStatus   int
	ProviderIDs int
	Default     int
}

// colorFor applies spec.md §4.F's color policy: new items always get the
// configured "new" color; upgrades are colored by their first change's
// type; anything else falls back to the default color.
func colorFor(action model.Action, changes []model.Change, palette Colors) int {
	if action == model.ActionNewItem {
		return palette.NewItem
	}
	if action == model.ActionUpgradedItem && len(changes) > 0 {
		switch changes[0].Type {
		case model.ChangeResolution:
			return palette.Resolution
		case model.ChangeCodec:
			return palette.Codec
		case model.ChangeAudioCodec, model.ChangeAudioChannel:
			return palette.AudioCodec
		case model.ChangeHDRStatus:
			return palette.HDRStatus
		case model.ChangeProviderIDs:
			return palette.ProviderIDs
		}
	}
	return palette.Default
}
