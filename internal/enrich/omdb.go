package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"jellydiscord/internal/model"
)

const omdbBaseURL = "https://www.omdbapi.com/"

// omdbResponse is the subset of OMDb's flat JSON response this bridge uses.
type omdbResponse struct {
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Runtime    string `json:"Runtime"`
	Genre      string `json:"Genre"`
	Actors     string `json:"Actors"`
	Plot       string `json:"Plot"`
	Poster     string `json:"Poster"`
	ImdbRating string `json:"imdbRating"`
	ImdbVotes  string `json:"imdbVotes"`
	Ratings    []struct {
		Source string `json:"Source"`
		Value  string `json:"Value"`
	} `json:"Ratings"`
	Response string `json:"Response"`
	Error    string `json:"Error"`
}

// OMDBProvider queries the OMDb API, which aggregates IMDb, Rotten
// Tomatoes, and Metacritic ratings in a single response.
type OMDBProvider struct {
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewOMDB builds an OMDb provider, rate-limited to one request per second
// per spec.md §4.D.
func NewOMDB(apiKey string, client *http.Client) *OMDBProvider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &OMDBProvider{
		apiKey:  strings.TrimSpace(apiKey),
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Name implements Provider.
func (p *OMDBProvider) Name() string { return "omdb" }

// Lookup implements Provider.
func (p *OMDBProvider) Lookup(ctx context.Context, record *model.Record) (*model.ProviderResult, error) {
	if p == nil || p.apiKey == "" {
		return nil, nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{"apikey": {p.apiKey}}
	if record.Providers.IMDB != "" {
		query.Set("i", record.Providers.IMDB)
	} else if record.Name != "" {
		query.Set("t", record.Name)
		if record.Year > 0 {
			query.Set("y", strconv.Itoa(record.Year))
		}
	} else {
		return nil, nil
	}

	resp, err := p.fetch(ctx, query)
	if err != nil {
		return nil, err
	}
	if resp == nil || strings.EqualFold(resp.Response, "False") {
		return nil, nil
	}
	return toOMDBResult(resp), nil
}

func (p *OMDBProvider) fetch(ctx context.Context, query url.Values) (*omdbResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, omdbBaseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build omdb request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("omdb request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("omdb returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out omdbResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode omdb response: %w", err)
	}
	return &out, nil
}

func toOMDBResult(resp *omdbResponse) *model.ProviderResult {
	result := &model.ProviderResult{
		Provider:    "omdb",
		Title:       resp.Title,
		Year:        parseYear(resp.Year),
		RuntimeMins: parseRuntimeMinutes(resp.Runtime),
		Overview:    resp.Plot,
		PosterURL:   posterOrEmpty(resp.Poster),
	}
	if resp.Genre != "" {
		result.Genres = splitCommaList(resp.Genre)
	}
	if resp.Actors != "" {
		result.Actors = splitCommaList(resp.Actors)
	}
	for _, r := range resp.Ratings {
		result.Ratings = append(result.Ratings, model.Rating{
			Source:    sourceKeyFor(r.Source),
			Value:     r.Value,
			VoteCount: parseVoteCount(resp.ImdbVotes, r.Source),
		})
	}
	return result
}

func sourceKeyFor(source string) string {
	switch {
	case strings.Contains(source, "Internet Movie Database"):
		return "imdb"
	case strings.Contains(source, "Rotten Tomatoes"):
		return "rotten_tomatoes"
	case strings.Contains(source, "Metacritic"):
		return "metacritic"
	default:
		return strings.ToLower(strings.ReplaceAll(source, " ", "_"))
	}
}

func parseVoteCount(imdbVotes, source string) *int {
	if !strings.Contains(source, "Internet Movie Database") {
		return nil
	}
	cleaned := strings.ReplaceAll(imdbVotes, ",", "")
	votes, err := strconv.Atoi(cleaned)
	if err != nil {
		return nil
	}
	return &votes
}

func parseYear(raw string) int {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 4 {
		raw = raw[:4]
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return year
}

func parseRuntimeMinutes(raw string) int {
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "min"))
	raw = strings.TrimSpace(raw)
	minutes, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return minutes
}

func posterOrEmpty(poster string) string {
	if poster == "N/A" {
		return ""
	}
	return poster
}

func splitCommaList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
