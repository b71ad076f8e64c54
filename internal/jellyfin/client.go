package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"jellydiscord/internal/logging"
	"jellydiscord/internal/model"
)

// HTTPDoer describes the HTTP client used by the Jellyfin client, allowing
// tests to substitute a fake round tripper.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// pageSize bounds how many items are requested per /Items page.
const pageSize = 200

// maxConsecutivePageErrors bounds how many back-to-back page failures
// StreamItems tolerates before giving up; without this bound a persistently
// unreachable server would spin forever re-requesting the same page.
const maxConsecutivePageErrors = 5

// Client talks to a single Jellyfin server's Items API.
type Client struct {
	baseURL string
	apiKey  string
	http    HTTPDoer
	breaker *breakerState
	logger  *slog.Logger
}

// Option configures optional Client behavior.
type Option func(*Client)

// WithLogger attaches a structured logger for per-page stream outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New constructs a Jellyfin client. baseURL and apiKey come from the
// bridge's configuration.
func New(baseURL, apiKey string, doer HTTPDoer, opts ...Option) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		http:    doer,
		breaker: newBreakerState(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build jellyfin request: %w", err)
	}
	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	return c.breaker.guard(req.Context(), func(context.Context) error {
		return c.doRaw(req, out)
	})
}

func (c *Client) doRaw(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("jellyfin request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("jellyfin returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode jellyfin response: %w", err)
	}
	return nil
}

// Ping verifies connectivity and credentials against /System/Info.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/System/Info", nil)
	if err != nil {
		return err
	}
	var info systemInfoResponse
	if err := c.do(req, &info); err != nil {
		return err
	}
	return nil
}

// GetItem fetches a single item by id.
func (c *Client) GetItem(ctx context.Context, id string) (*wireItem, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/Items/"+url.PathEscape(id), url.Values{
		"Fields": {"Overview,Genres,Studios,Tags,ProviderIds,MediaStreams,Path,Taglines"},
	})
	if err != nil {
		return nil, err
	}
	var item wireItem
	if err := c.do(req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetRecord fetches a single item and converts it to a Media Record, for
// callers outside this package that cannot name the unexported wire type.
func (c *Client) GetRecord(ctx context.Context, id string, server model.ServerContext) (*model.Record, error) {
	item, err := c.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	return ConvertToRecord(item, server), nil
}

// PageFunc is called once per page returned by StreamItems.
type PageFunc func(items []wireItem, startIndex, totalRecordCount int) error

// StreamItems pages through the full library (optionally filtered by
// Jellyfin item type), invoking fn once per page so callers can process
// items incrementally instead of buffering the whole library in memory.
//
// Per spec.md §4.B, a page request that fails is logged and skipped rather
// than aborting the whole stream, so one transient failure doesn't stop
// reconciliation from reaching the rest of a reachable library. Failures
// that persist for maxConsecutivePageErrors pages in a row are treated as
// the server being down and the stream gives up.
func (c *Client) StreamItems(ctx context.Context, includeItemTypes string, fn PageFunc) error {
	startIndex := 0
	total := -1
	consecutiveErrors := 0

	for {
		query := url.Values{
			"Recursive":        {"true"},
			"Fields":           {"Overview,Genres,Studios,Tags,ProviderIds,MediaStreams,Path,Taglines"},
			"StartIndex":       {strconv.Itoa(startIndex)},
			"Limit":            {strconv.Itoa(pageSize)},
			"SortBy":           {"SortName"},
			"SortOrder":        {"Ascending"},
			"IncludeItemTypes": {includeItemTypes},
		}
		req, err := c.newRequest(ctx, http.MethodGet, "/Items", query)
		if err != nil {
			return err
		}

		var page itemsResponse
		if err := c.do(req, &page); err != nil {
			consecutiveErrors++
			c.logger.Warn("jellyfin page fetch failed, skipping page",
				logging.Int("start_index", startIndex),
				logging.Int("consecutive_errors", consecutiveErrors),
				logging.Error(err))
			if consecutiveErrors >= maxConsecutivePageErrors {
				return fmt.Errorf("jellyfin stream aborted after %d consecutive page failures: %w", consecutiveErrors, err)
			}
			startIndex += pageSize
			if total >= 0 && startIndex >= total {
				return nil
			}
			continue
		}
		consecutiveErrors = 0
		total = page.TotalRecordCount

		if err := fn(page.Items, page.StartIndex, page.TotalRecordCount); err != nil {
			return err
		}
		startIndex += len(page.Items)
		if len(page.Items) == 0 || startIndex >= page.TotalRecordCount {
			return nil
		}
	}
}

// RecordPageFunc is called once per page returned by StreamRecords, after
// raw wire items have been converted to Media Records.
type RecordPageFunc func(records []*model.Record, startIndex, totalRecordCount int) error

// StreamRecords pages through the full library like StreamItems, but
// converts each page to Media Records before handing it to fn, so callers
// outside this package (which cannot name the unexported wire item type)
// can still consume the library incrementally.
func (c *Client) StreamRecords(ctx context.Context, includeItemTypes string, server model.ServerContext, fn RecordPageFunc) error {
	return c.StreamItems(ctx, includeItemTypes, func(items []wireItem, startIndex, total int) error {
		records := make([]*model.Record, len(items))
		for i := range items {
			records[i] = ConvertToRecord(&items[i], server)
		}
		return fn(records, startIndex, total)
	})
}

// GetAllItems collects the full library into a single slice, reporting
// progress through onBatch as each page completes. Prefer StreamRecords for
// large libraries; this exists for callers (CLI commands, tests) that want
// the whole result at once.
func (c *Client) GetAllItems(ctx context.Context, includeItemTypes string, server model.ServerContext, onBatch func(scanned, total int)) ([]*model.Record, error) {
	var all []*model.Record
	err := c.StreamRecords(ctx, includeItemTypes, server, func(records []*model.Record, startIndex, total int) error {
		all = append(all, records...)
		if onBatch != nil {
			onBatch(startIndex+len(records), total)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}
