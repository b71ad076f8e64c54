package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"jellydiscord/internal/model"
)

const tvdbBaseURL = "https://api4.thetvdb.com/v4"
const tvdbArtworkBaseURL = "https://artworks.thetvdb.com"

type tvdbLoginResponse struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}

type tvdbSeriesData struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Overview string `json:"overview"`
	Year     string `json:"year"`
	Image    string `json:"image"`
	Score    float64 `json:"score"`
}

type tvdbSeriesResponse struct {
	Data tvdbSeriesData `json:"data"`
}

type tvdbSearchResponse struct {
	Data []tvdbSeriesData `json:"data"`
}

// TVDBProvider queries TheTVDB v4 API, which requires a short-lived bearer
// token obtained by authenticating with the configured API key.
type TVDBProvider struct {
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewTVDB builds a TVDB provider, rate-limited to one request per second
// per spec.md §4.D.
func NewTVDB(apiKey string, client *http.Client) *TVDBProvider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &TVDBProvider{
		apiKey:  strings.TrimSpace(apiKey),
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Name implements Provider.
func (p *TVDBProvider) Name() string { return "tvdb" }

// Lookup implements Provider.
func (p *TVDBProvider) Lookup(ctx context.Context, record *model.Record) (*model.ProviderResult, error) {
	if p == nil || p.apiKey == "" {
		return nil, nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	token, err := p.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	if record.Providers.TVDB != "" {
		var resp tvdbSeriesResponse
		if err := p.get(ctx, token, "/series/"+record.Providers.TVDB+"/extended", nil, &resp); err != nil {
			return nil, err
		}
		if resp.Data.ID == 0 {
			return nil, nil
		}
		return toTVDBResult(&resp.Data), nil
	}

	if record.Name == "" {
		return nil, nil
	}
	var resp tvdbSearchResponse
	query := url.Values{"query": {record.Name}, "type": {"series"}}
	if err := p.get(ctx, token, "/search", query, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	return toTVDBResult(&resp.Data[0]), nil
}

// authenticate caches the bearer token for its stated lifetime (~1 month);
// this bridge re-authenticates whenever the cached token is within 5
// minutes of expiry to avoid racing a mid-request rejection.
func (p *TVDBProvider) authenticate(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.tokenExpiry.Add(-5*time.Minute)) {
		return p.token, nil
	}

	body, err := json.Marshal(map[string]string{"apikey": p.apiKey})
	if err != nil {
		return "", fmt.Errorf("encode tvdb login: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tvdbBaseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build tvdb login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tvdb login request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("tvdb login returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var login tvdbLoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return "", fmt.Errorf("decode tvdb login response: %w", err)
	}

	p.token = login.Data.Token
	p.tokenExpiry = time.Now().Add(28 * 24 * time.Hour)
	return p.token, nil
}

func (p *TVDBProvider) get(ctx context.Context, token, path string, query url.Values, out any) error {
	reqURL := tvdbBaseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build tvdb request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("tvdb request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("tvdb returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode tvdb response: %w", err)
	}
	return nil
}

func toTVDBResult(data *tvdbSeriesData) *model.ProviderResult {
	result := &model.ProviderResult{
		Provider: "tvdb",
		Title:    data.Name,
		Year:     parseYear(data.Year),
		Overview: data.Overview,
	}
	if data.Image != "" {
		result.PosterURL = tvdbArtworkBaseURL + data.Image
	}
	if data.Score > 0 {
		result.Ratings = []model.Rating{{
			Source:        "tvdb",
			Value:         fmt.Sprintf("%.1f/10", data.Score),
			Normalized010: data.Score,
		}}
	}
	return result
}
