// Package discord routes rendered Discord messages to the webhook bound to
// a media kind, enforcing a per-webhook sliding-window rate limit, a
// bounded retry queue, and exponential backoff on transient failures.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"jellydiscord/internal/config"
	"jellydiscord/internal/logging"
	"jellydiscord/internal/metrics"
	"jellydiscord/internal/model"
	"jellydiscord/internal/svcerr"
)

const (
	sendTimeout      = 10 * time.Second
	interMessageGap  = 500 * time.Millisecond
	baseRetryBackoff = 60 * time.Second
)

// webhook bundles one target's configuration and runtime rate/queue state.
type webhook struct {
	name    Target
	url     string
	enabled bool
	limiter *slidingWindow
	queue   *boundedQueue
}

// Stats is a snapshot of one webhook's delivery counters, per spec.md
// §4.G's exposed statistics.
type Stats struct {
	Queued        int64
	Sent          int64
	Failed        int64
	Retried       int64
	CurrentSize   int
	RateLimitHits int64
	Capacity      int
}

// Utilization returns CurrentSize/Capacity as a percentage.
func (s Stats) Utilization() float64 {
	if s.Capacity == 0 {
		return 0
	}
	return 100 * float64(s.CurrentSize) / float64(s.Capacity)
}

// SuccessRate returns Sent/(Sent+Failed) as a percentage.
func (s Stats) SuccessRate() float64 {
	total := s.Sent + s.Failed
	if total == 0 {
		return 100
	}
	return 100 * float64(s.Sent) / float64(total)
}

type counters struct {
	mu            sync.Mutex
	queued        int64
	sent          int64
	failed        int64
	retried       int64
	rateLimitHits int64
}

// Dispatcher owns one webhook per Target, each with its own rate limiter,
// bounded queue and worker goroutine.
type Dispatcher struct {
	client     *http.Client
	logger     *slog.Logger
	webhooks   map[Target]*webhook
	counters   map[Target]*counters
	queueCap   int
	maxRetries int

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New builds a Dispatcher from the bridge's webhook and dispatcher-tuning
// configuration. Workers are started by Start, not here.
func New(cfg *config.Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		client:     &http.Client{Timeout: sendTimeout},
		logger:     logger,
		webhooks:   make(map[Target]*webhook),
		counters:   make(map[Target]*counters),
		queueCap:   cfg.DispatcherQueueSize,
		maxRetries: cfg.DispatcherMaxRetries,
	}
	window := time.Duration(cfg.DispatcherWindowSecs) * time.Second
	if window <= 0 {
		window = 60 * time.Second
	}
	limit := cfg.DispatcherWindowLimit
	if limit <= 0 {
		limit = 30
	}
	if d.queueCap <= 0 {
		d.queueCap = 1000
	}
	if d.maxRetries <= 0 {
		d.maxRetries = 3
	}
	d.addWebhook(TargetMovies, cfg.WebhookMovies, window, limit)
	d.addWebhook(TargetTV, cfg.WebhookTV, window, limit)
	d.addWebhook(TargetMusic, cfg.WebhookMusic, window, limit)
	d.addWebhook(TargetDefault, cfg.WebhookDefault, window, limit)
	return d
}

func (d *Dispatcher) addWebhook(target Target, cfg config.WebhookConfig, window time.Duration, limit int) {
	d.webhooks[target] = &webhook{
		name:    target,
		url:     cfg.URL,
		enabled: cfg.Enabled && cfg.URL != "",
		limiter: newSlidingWindow(window, limit),
		queue:   newBoundedQueue(d.queueCap),
	}
	d.counters[target] = &counters{}
}

// Start launches one worker goroutine per configured webhook.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	for target, wh := range d.webhooks {
		if !wh.enabled {
			continue
		}
		d.wg.Add(1)
		go d.runWorker(ctx, target, wh)
	}
}

// Stop cancels all workers and waits for them to drain their current send.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

// Enqueue routes msg by the record's kind, falling back to the default
// webhook if the kind-specific one is disabled/unconfigured, and pushes it
// onto that webhook's bounded queue. Returns an error if both the target
// and the default webhook are unavailable, or the queue is full.
func (d *Dispatcher) Enqueue(record *model.Record, msg model.DiscordMessage) error {
	target := routeFor(record.Kind)
	wh := d.webhooks[target]
	if wh == nil || !wh.enabled {
		wh = d.webhooks[TargetDefault]
		target = TargetDefault
	}
	if wh == nil || !wh.enabled {
		d.logger.Warn("no webhook available for item, dropping",
			logging.String(logging.FieldItemID, record.ID),
			logging.String(logging.FieldWebhook, string(target)))
		return svcerr.Wrap(svcerr.ErrDispatchTerminal, "discord", "enqueue",
			"no webhook configured", nil)
	}

	entry := model.QueueEntry{
		TargetWebhook: string(target),
		Payload:       msg,
		ItemName:      record.Name,
		NotBefore:     time.Now(),
	}
	if !wh.queue.Push(entry) {
		d.bump(target, wh, "failed", func(c *counters) { c.failed++ })
		return svcerr.Wrap(svcerr.ErrQueueSaturated, "discord", "enqueue",
			fmt.Sprintf("queue full for webhook %s", target), nil)
	}
	d.bump(target, wh, "queued", func(c *counters) { c.queued++ })
	return nil
}

// BroadcastStatus enqueues a server-connectivity embed to every enabled
// webhook, bypassing per-kind routing since the message isn't tied to a
// single record. Used by the connectivity watch loop on an offline<->online
// transition.
func (d *Dispatcher) BroadcastStatus(msg model.DiscordMessage) {
	for target, wh := range d.webhooks {
		if !wh.enabled {
			continue
		}
		entry := model.QueueEntry{
			TargetWebhook: string(target),
			Payload:       msg,
			ItemName:      "server_status",
			NotBefore:     time.Now(),
		}
		if !wh.queue.Push(entry) {
			d.bump(target, wh, "failed", func(c *counters) { c.failed++ })
			continue
		}
		d.bump(target, wh, "queued", func(c *counters) { c.queued++ })
	}
}

func (d *Dispatcher) runWorker(ctx context.Context, target Target, wh *webhook) {
	defer d.wg.Done()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := time.Now()
		if !wh.limiter.allow(now) {
			// Rate limited: leave the queue untouched so FIFO order holds
			// once the window admits sends again.
			continue
		}
		entry, ok := wh.queue.Pop(now)
		if !ok {
			continue
		}

		d.send(ctx, target, wh, entry)
		time.Sleep(interMessageGap)
	}
}

func (d *Dispatcher) send(ctx context.Context, target Target, wh *webhook, entry model.QueueEntry) {
	body, err := json.Marshal(entry.Payload)
	if err != nil {
		d.logger.Error("failed to marshal discord payload", logging.Error(err), logging.String(logging.FieldWebhook, string(target)))
		d.bump(target, wh, "failed", func(c *counters) { c.failed++ })
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, wh.url, bytes.NewReader(body))
	if err != nil {
		d.bump(target, wh, "failed", func(c *counters) { c.failed++ })
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.retryOrDrop(target, wh, entry, "network error sending webhook", err)
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK:
		wh.limiter.record(time.Now())
		d.bump(target, wh, "sent", func(c *counters) { c.sent++ })
		d.logger.Info("discord message sent",
			logging.String(logging.FieldWebhook, string(target)),
			logging.String("item_name", entry.ItemName))

	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		wh.limiter.block(time.Now().Add(retryAfter))
		entry.NotBefore = time.Now().Add(retryAfter)
		d.bump(target, wh, "rate_limited", func(c *counters) { c.rateLimitHits++ })
		if !wh.queue.Push(entry) {
			d.bump(target, wh, "failed", func(c *counters) { c.failed++ })
		}
		d.logger.Warn("discord rate limited",
			logging.String(logging.FieldWebhook, string(target)),
			logging.Duration("retry_after", retryAfter))

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		d.bump(target, wh, "failed", func(c *counters) { c.failed++ })
		d.logger.Error("discord webhook rejected",
			logging.String(logging.FieldWebhook, string(target)),
			logging.Int("status", resp.StatusCode))

	default:
		d.retryOrDrop(target, wh, entry, fmt.Sprintf("discord returned %d", resp.StatusCode), nil)
	}
}

func (d *Dispatcher) retryOrDrop(target Target, wh *webhook, entry model.QueueEntry, reason string, cause error) {
	entry.RetryCount++
	if entry.RetryCount > d.maxRetries {
		d.bump(target, wh, "failed", func(c *counters) { c.failed++ })
		d.logger.Error("discord send failed after max retries",
			logging.String(logging.FieldWebhook, string(target)),
			logging.Error(cause),
			logging.String("reason", reason))
		return
	}
	backoff := baseRetryBackoff * time.Duration(1<<uint(entry.RetryCount-1))
	entry.NotBefore = time.Now().Add(backoff)
	d.bump(target, wh, "retried", func(c *counters) { c.retried++ })
	if !wh.queue.Push(entry) {
		d.bump(target, wh, "failed", func(c *counters) { c.failed++ })
	}
}

func parseRetryAfter(header string) time.Duration {
	var seconds float64
	if _, err := fmt.Sscanf(header, "%f", &seconds); err != nil || seconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(seconds * float64(time.Second))
}

func (d *Dispatcher) bump(target Target, wh *webhook, outcome string, f func(*counters)) {
	c := d.counters[target]
	if c == nil {
		return
	}
	c.mu.Lock()
	f(c)
	c.mu.Unlock()
	depth := 0
	if wh != nil {
		depth = wh.queue.Len()
	}
	metrics.RecordDispatch(string(target), outcome, depth)
}

// StatsFor returns the current delivery statistics for one webhook target.
func (d *Dispatcher) StatsFor(target Target) Stats {
	wh := d.webhooks[target]
	c := d.counters[target]
	if wh == nil || c == nil {
		return Stats{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Queued:        c.queued,
		Sent:          c.sent,
		Failed:        c.failed,
		Retried:       c.retried,
		CurrentSize:   wh.queue.Len(),
		RateLimitHits: c.rateLimitHits,
		Capacity:      d.queueCap,
	}
}
