// Package detect implements the pure comparison between two Media Record
// snapshots that decides whether a re-ingested item represents a quality
// upgrade, and if so, which fields changed.
package detect

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"jellydiscord/internal/model"
)

// Detect compares old and new, returning the ordered list of changes that
// policy permits. It performs no I/O and has no side effects; callers
// decide whether to call it at all based on a cheap fingerprint comparison
// first (see model.Record.Fingerprint).
func Detect(old, new *model.Record, policy model.WatchPolicy) []model.Change {
	if old == nil || new == nil {
		return nil
	}

	var changes []model.Change

	if policy.Enabled(model.ChangeResolution) {
		if c, ok := resolutionChange(old, new); ok {
			changes = append(changes, c)
		}
	}
	if policy.Enabled(model.ChangeCodec) {
		if c, ok := codecChange(old, new); ok {
			changes = append(changes, c)
		}
	}
	if policy.Enabled(model.ChangeAudioCodec) {
		if c, ok := audioCodecChange(old, new); ok {
			changes = append(changes, c)
		}
	}
	if policy.Enabled(model.ChangeAudioChannel) {
		if c, ok := audioChannelsChange(old, new); ok {
			changes = append(changes, c)
		}
	}
	if policy.Enabled(model.ChangeHDRStatus) {
		if c, ok := hdrStatusChange(old, new); ok {
			changes = append(changes, c)
		}
	}
	if policy.Enabled(model.ChangeFileSize) {
		if c, ok := fileSizeChange(old, new); ok {
			changes = append(changes, c)
		}
	}
	if policy.Enabled(model.ChangeProviderIDs) {
		changes = append(changes, providerIDChanges(old, new)...)
	}

	return changes
}

func videoHeight(r *model.Record) int {
	if r.Video == nil {
		return 0
	}
	return r.Video.Height
}

func videoCodec(r *model.Record) string {
	if r.Video == nil || r.Video.Codec == "" {
		return "Unknown"
	}
	return r.Video.Codec
}

func audioCodec(r *model.Record) string {
	if r.Audio == nil || r.Audio.Codec == "" {
		return "Unknown"
	}
	return r.Audio.Codec
}

func audioChannels(r *model.Record) int {
	if r.Audio == nil {
		return 0
	}
	return r.Audio.Channels
}

func resolutionChange(old, new *model.Record) (model.Change, bool) {
	oldH, newH := videoHeight(old), videoHeight(new)
	if oldH == newH {
		return model.Change{}, false
	}
	return model.Change{
		Type:        model.ChangeResolution,
		Field:       "video.height",
		OldValue:    oldH,
		NewValue:    newH,
		Description: fmt.Sprintf("Resolution changed: %dp → %dp", oldH, newH),
	}, true
}

func codecChange(old, new *model.Record) (model.Change, bool) {
	oldC, newC := videoCodec(old), videoCodec(new)
	if oldC == newC {
		return model.Change{}, false
	}
	return model.Change{
		Type:        model.ChangeCodec,
		Field:       "video.codec",
		OldValue:    oldC,
		NewValue:    newC,
		Description: fmt.Sprintf("Video codec changed: %s → %s", oldC, newC),
	}, true
}

func audioCodecChange(old, new *model.Record) (model.Change, bool) {
	oldC, newC := audioCodec(old), audioCodec(new)
	if oldC == newC {
		return model.Change{}, false
	}
	return model.Change{
		Type:        model.ChangeAudioCodec,
		Field:       "audio.codec",
		OldValue:    oldC,
		NewValue:    newC,
		Description: fmt.Sprintf("Audio codec changed: %s → %s", oldC, newC),
	}, true
}

func audioChannelsChange(old, new *model.Record) (model.Change, bool) {
	oldC, newC := audioChannels(old), audioChannels(new)
	if oldC == newC {
		return model.Change{}, false
	}
	return model.Change{
		Type:        model.ChangeAudioChannel,
		Field:       "audio.channels",
		OldValue:    oldC,
		NewValue:    newC,
		Description: fmt.Sprintf("Audio channels changed: %d → %d", oldC, newC),
	}, true
}

func hdrStatusChange(old, new *model.Record) (model.Change, bool) {
	oldR, newR := old.VideoRangeOrDefault(), new.VideoRangeOrDefault()
	if oldR == newR {
		return model.Change{}, false
	}
	return model.Change{
		Type:        model.ChangeHDRStatus,
		Field:       "video.range",
		OldValue:    oldR,
		NewValue:    newR,
		Description: fmt.Sprintf("HDR status changed: %s → %s", oldR, newR),
	}, true
}

// fileSizeSignificanceThreshold is the fraction of the old size a delta
// must exceed before the change is reported; smaller deltas are treated as
// re-mux/re-mount noise, not a meaningful quality change.
const fileSizeSignificanceThreshold = 0.10

func fileSizeChange(old, new *model.Record) (model.Change, bool) {
	oldSize, newSize := old.File.Size, new.File.Size
	if oldSize == newSize {
		return model.Change{}, false
	}
	denominator := oldSize
	if denominator < 1 {
		denominator = 1
	}
	delta := newSize - oldSize
	if delta < 0 {
		delta = -delta
	}
	ratio := float64(delta) / float64(denominator)
	if ratio <= fileSizeSignificanceThreshold {
		return model.Change{}, false
	}
	return model.Change{
		Type:        model.ChangeFileSize,
		Field:       "file.size",
		OldValue:    oldSize,
		NewValue:    newSize,
		Description: fmt.Sprintf("File size changed: %s → %s", humanize.IBytes(uint64(oldSize)), humanize.IBytes(uint64(newSize))),
	}, true
}

func providerIDChanges(old, new *model.Record) []model.Change {
	var changes []model.Change
	pairs := []struct {
		changeType model.ChangeType
		field      string
		label      string
		oldVal     string
		newVal     string
	}{
		{model.ChangeProviderIDs, "providers.imdb", "IMDb", old.Providers.IMDB, new.Providers.IMDB},
		{model.ChangeProviderIDs, "providers.tmdb", "TMDb", old.Providers.TMDB, new.Providers.TMDB},
		{model.ChangeProviderIDs, "providers.tvdb", "TVDB", old.Providers.TVDB, new.Providers.TVDB},
	}
	for _, p := range pairs {
		oldDisplay, newDisplay := providerDisplay(p.oldVal), providerDisplay(p.newVal)
		if p.oldVal == "" && p.newVal == "" {
			continue
		}
		if p.oldVal == p.newVal {
			continue
		}
		changes = append(changes, model.Change{
			Type:        p.changeType,
			Field:       p.field,
			OldValue:    oldDisplay,
			NewValue:    newDisplay,
			Description: fmt.Sprintf("%s id changed: %s → %s", p.label, oldDisplay, newDisplay),
		})
	}
	return changes
}

func providerDisplay(id string) string {
	if id == "" {
		return "None"
	}
	return id
}

