// Package thumbnail resolves a usable Discord thumbnail URL for a Media
// Record by trying a per-kind ordered list of Jellyfin image candidates and
// HEAD-verifying each one, caching both hits and misses.
package thumbnail

import (
	"container/list"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"jellydiscord/internal/model"
)

const (
	defaultCacheTTL   = time.Hour
	defaultCacheLimit = 500
	verifyTimeout     = 5 * time.Second
)

// Resolver produces and verifies candidate thumbnail URLs against a
// Jellyfin server.
type Resolver struct {
	baseURL string
	client  *http.Client

	mu    sync.Mutex
	cache *list.List // most-recently-used at the front
	index map[string]*list.Element
	ttl   time.Duration
	limit int
}

type cacheEntry struct {
	key       string
	url       string
	ok        bool
	expiresAt time.Time
}

// New builds a Resolver against a Jellyfin base URL.
func New(baseURL string, client *http.Client) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: verifyTimeout}
	}
	return &Resolver{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  client,
		cache:   list.New(),
		index:   make(map[string]*list.Element),
		ttl:     defaultCacheTTL,
		limit:   defaultCacheLimit,
	}
}

// Resolve returns the first verified thumbnail URL for record, or "" if
// none of the candidates for its kind resolve to a live image.
func (r *Resolver) Resolve(ctx context.Context, record *model.Record) string {
	if r == nil || record == nil {
		return ""
	}
	for _, candidate := range candidatesFor(record) {
		u := r.buildURL(candidate)
		if u == "" {
			continue
		}
		if ok, cached := r.cached(u); cached {
			if ok {
				return u
			}
			continue
		}
		ok := r.verify(ctx, u)
		r.remember(u, ok)
		if ok {
			return u
		}
	}
	return ""
}

// candidate names the item whose image is requested, which Jellyfin image
// type to request it as, and which tag slot to read off the record's image
// tags. Jellyfin's image API keys the type into the URL path
// (/Items/{id}/Images/{Type}), so a logo or backdrop candidate must request
// that type, not Primary.
type candidate struct {
	itemID    string
	imageType string
	tag       string
}

// Jellyfin image type path segments.
const (
	imageTypePrimary  = "Primary"
	imageTypeLogo     = "Logo"
	imageTypeBackdrop = "Backdrop"
	imageTypeThumb    = "Thumb"
)

// candidatesFor returns the ordered fallback chain of image candidates per
// spec.md §4.E, by media kind.
func candidatesFor(r *model.Record) []candidate {
	switch r.Kind {
	case model.KindEpisode:
		return []candidate{
			{r.ID, imageTypePrimary, r.Images.Primary},
			{r.SeasonID, imageTypePrimary, r.Images.ParentPrimary},
			{r.SeriesID, imageTypePrimary, r.Images.SeriesPrimary},
			{r.SeriesID, imageTypeLogo, r.Images.SeriesLogo},
		}
	case model.KindSeason:
		return []candidate{
			{r.ID, imageTypePrimary, r.Images.Primary},
			{r.SeriesID, imageTypePrimary, r.Images.SeriesPrimary},
			{r.SeriesID, imageTypeLogo, r.Images.SeriesLogo},
		}
	case model.KindSeries:
		return []candidate{
			{r.ID, imageTypePrimary, r.Images.Primary},
			{r.ID, imageTypeLogo, r.Images.Logo},
			{r.ID, imageTypeBackdrop, r.Images.Backdrop},
		}
	case model.KindMovie:
		return []candidate{
			{r.ID, imageTypePrimary, r.Images.Primary},
			{r.ID, imageTypeBackdrop, r.Images.Backdrop},
		}
	case model.KindAudio, model.KindMusicAlbum:
		return []candidate{
			{r.ID, imageTypePrimary, r.Images.Primary},
			{r.ParentID, imageTypePrimary, r.Images.ParentPrimary},
		}
	default:
		return []candidate{
			{r.ID, imageTypePrimary, r.Images.Primary},
			{r.ID, imageTypeThumb, r.Images.Thumb},
		}
	}
}

var hyphenlessUUID = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)

// canonicalizeID reformats a 32-char hyphen-less id into the canonical
// 8-4-4-4-12 hyphenated UUID form Jellyfin's image API expects.
func canonicalizeID(id string) string {
	if hyphenlessUUID.MatchString(id) {
		return fmt.Sprintf("%s-%s-%s-%s-%s", id[0:8], id[8:12], id[12:16], id[16:20], id[20:32])
	}
	return id
}

func (r *Resolver) buildURL(c candidate) string {
	if c.itemID == "" || c.tag == "" {
		return ""
	}
	id := canonicalizeID(c.itemID)
	query := url.Values{
		"quality":  {"90"},
		"maxWidth": {"500"},
		"maxHeight": {"400"},
		"tag":      {c.tag},
	}
	return fmt.Sprintf("%s/Items/%s/Images/%s?%s", r.baseURL, id, c.imageType, query.Encode())
}

func (r *Resolver) verify(ctx context.Context, u string) bool {
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return false
	}
	contentType := resp.Header.Get("Content-Type")
	return strings.HasPrefix(contentType, "image/")
}

func (r *Resolver) cached(key string) (ok bool, hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	elem, found := r.index[key]
	if !found {
		return false, false
	}
	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		r.cache.Remove(elem)
		delete(r.index, key)
		return false, false
	}
	r.cache.MoveToFront(elem)
	return entry.ok, true
}

func (r *Resolver) remember(key string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if elem, found := r.index[key]; found {
		r.cache.Remove(elem)
		delete(r.index, key)
	}

	entry := &cacheEntry{key: key, url: key, ok: ok, expiresAt: time.Now().Add(r.ttl)}
	elem := r.cache.PushFront(entry)
	r.index[key] = elem

	for r.cache.Len() > r.limit {
		oldest := r.cache.Back()
		if oldest == nil {
			break
		}
		r.cache.Remove(oldest)
		delete(r.index, oldest.Value.(*cacheEntry).key)
	}
}
