package model

// ChangeType enumerates the kinds of diffs the change detector reports.
type ChangeType string

const (
	ChangeResolution   ChangeType = "resolution"
	ChangeCodec        ChangeType = "codec"
	ChangeAudioCodec   ChangeType = "audio_codec"
	ChangeAudioChannel ChangeType = "audio_channels"
	ChangeHDRStatus    ChangeType = "hdr_status"
	ChangeFileSize     ChangeType = "file_size"
	ChangeProviderIDs  ChangeType = "provider_ids"
)

// Change is a typed diff between two Media Records for a single field.
type Change struct {
	Type        ChangeType
	Field       string
	OldValue    any
	NewValue    any
	Description string
}

// WatchPolicy is a mapping from change type to enable bit. A zero-value
// WatchPolicy enables every change type (all fields are nil, which
// Enabled treats as enabled).
type WatchPolicy struct {
	Resolution    *bool
	Codec         *bool
	AudioCodec    *bool
	AudioChannels *bool
	HDRStatus     *bool
	FileSize      *bool
	ProviderIDs   *bool
}

// Enabled reports whether t is active under p, defaulting to true when the
// policy does not mention the type.
func (p WatchPolicy) Enabled(t ChangeType) bool {
	var ptr *bool
	switch t {
	case ChangeResolution:
		ptr = p.Resolution
	case ChangeCodec:
		ptr = p.Codec
	case ChangeAudioCodec:
		ptr = p.AudioCodec
	case ChangeAudioChannel:
		ptr = p.AudioChannels
	case ChangeHDRStatus:
		ptr = p.HDRStatus
	case ChangeFileSize:
		ptr = p.FileSize
	case ChangeProviderIDs:
		ptr = p.ProviderIDs
	}
	if ptr == nil {
		return true
	}
	return *ptr
}
