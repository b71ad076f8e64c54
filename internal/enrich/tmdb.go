package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"jellydiscord/internal/model"
)

const tmdbBaseURL = "https://api.themoviedb.org/3"

type tmdbSearchResponse struct {
	Results []tmdbResult `json:"results"`
}

type tmdbResult struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
	Runtime      int     `json:"runtime"`
	GenreIDs     []int   `json:"genre_ids"`
}

// TMDBProvider queries The Movie Database's search and find endpoints.
type TMDBProvider struct {
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewTMDB builds a TMDB provider, rate-limited to one request per second
// per spec.md §4.D.
func NewTMDB(apiKey string, client *http.Client) *TMDBProvider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &TMDBProvider{
		apiKey:  strings.TrimSpace(apiKey),
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Name implements Provider.
func (p *TMDBProvider) Name() string { return "tmdb" }

// Lookup implements Provider.
func (p *TMDBProvider) Lookup(ctx context.Context, record *model.Record) (*model.ProviderResult, error) {
	if p == nil || p.apiKey == "" {
		return nil, nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if record.Providers.TMDB != "" {
		return p.findByID(ctx, record)
	}
	return p.searchByName(ctx, record)
}

func (p *TMDBProvider) findByID(ctx context.Context, record *model.Record) (*model.ProviderResult, error) {
	path := fmt.Sprintf("/movie/%s", record.Providers.TMDB)
	if isSeriesKind(record.Kind) {
		path = fmt.Sprintf("/tv/%s", record.Providers.TMDB)
	}
	var result tmdbResult
	if err := p.get(ctx, path, url.Values{}, &result); err != nil {
		return nil, err
	}
	if result.ID == 0 {
		return nil, nil
	}
	return toTMDBResult(&result), nil
}

func (p *TMDBProvider) searchByName(ctx context.Context, record *model.Record) (*model.ProviderResult, error) {
	if record.Name == "" {
		return nil, nil
	}
	path := "/search/movie"
	if isSeriesKind(record.Kind) {
		path = "/search/tv"
	}
	query := url.Values{"query": {record.Name}}
	var resp tmdbSearchResponse
	if err := p.get(ctx, path, query, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return toTMDBResult(&resp.Results[0]), nil
}

func (p *TMDBProvider) get(ctx context.Context, path string, query url.Values, out any) error {
	query.Set("api_key", p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tmdbBaseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build tmdb request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("tmdb request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("tmdb returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode tmdb response: %w", err)
	}
	return nil
}

func isSeriesKind(kind model.Kind) bool {
	switch kind {
	case model.KindSeries, model.KindSeason, model.KindEpisode:
		return true
	default:
		return false
	}
}

func toTMDBResult(r *tmdbResult) *model.ProviderResult {
	title := r.Title
	if title == "" {
		title = r.Name
	}
	releaseDate := r.ReleaseDate
	if releaseDate == "" {
		releaseDate = r.FirstAirDate
	}

	result := &model.ProviderResult{
		Provider:    "tmdb",
		Title:       title,
		Year:        parseYear(releaseDate),
		RuntimeMins: r.Runtime,
		Overview:    r.Overview,
	}
	if r.PosterPath != "" {
		result.PosterURL = tmdbImageBaseURL + r.PosterPath
	}
	if r.BackdropPath != "" {
		result.BackdropURL = tmdbImageBaseURL + r.BackdropPath
	}
	if r.VoteAverage > 0 {
		votes := r.VoteCount
		result.Ratings = []model.Rating{{
			Source:        "tmdb",
			Value:         fmt.Sprintf("%.1f/10", r.VoteAverage),
			Normalized010: r.VoteAverage,
			VoteCount:     &votes,
		}}
	}
	return result
}

const tmdbImageBaseURL = "https://image.tmdb.org/t/p/w500"
