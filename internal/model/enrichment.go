package model

// Rating is a single normalized rating value from a provider.
type Rating struct {
	Source        string
	Value         string
	Normalized010 float64
	VoteCount     *int
}

// ProviderResult is a single external provider's normalized payload for a
// Media Record.
type ProviderResult struct {
	Provider    string
	Title       string
	Year        int
	RuntimeMins int
	Genres      []string
	Actors      []string
	Overview    string
	Tagline     string
	Ratings     []Rating
	PosterURL   string
	BackdropURL string
}

// Bundle aggregates zero-or-more provider results for a single delivery,
// plus the unified ratings map derived from them. Bundles are transient —
// built fresh per delivery — even though the underlying provider fetches
// are cached (see the rating cache in the store).
type Bundle struct {
	OMDB *ProviderResult
	TMDB *ProviderResult
	TVDB *ProviderResult

	// Ratings maps a rating source name to its unified value.
	Ratings map[string]Rating
}

// IsEmpty reports whether no provider produced a result.
func (b Bundle) IsEmpty() bool {
	return b.OMDB == nil && b.TMDB == nil && b.TVDB == nil
}
