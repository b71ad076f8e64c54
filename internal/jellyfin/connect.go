package jellyfin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"jellydiscord/internal/metrics"
)

// connectedCacheTTL is how long a successful Ping is trusted before
// IsConnected probes the server again.
const connectedCacheTTL = 5 * time.Minute

// connectRetries and connectBaseDelay drive Connect's backoff schedule:
// 3 attempts with waits of 2s and then 4s between them.
const connectRetries = 3

var connectBaseDelay = 2 * time.Second

// breakerState tracks the circuit breaker and the last-known-good ping
// time so repeated health checks don't hammer the server.
type breakerState struct {
	cb *gobreaker.CircuitBreaker[any]

	mu            sync.Mutex
	lastConnected time.Time
}

func newBreakerState() *breakerState {
	return &breakerState{
		cb: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        "jellyfin-api",
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < 5 {
					return false
				}
				return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
			},
		}),
	}
}

func (b *breakerState) guard(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	metrics.SetCircuitBreakerState("jellyfin-api", breakerStateValue(b.cb.State()))
	if err != nil {
		return err
	}
	return nil
}

// breakerStateValue maps gobreaker's state to the numeric scale the
// circuit_breaker_state gauge publishes (0=closed, 1=half-open, 2=open).
func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func (b *breakerState) markConnected(when time.Time) {
	b.mu.Lock()
	b.lastConnected = when
	b.mu.Unlock()
}

func (b *breakerState) isFresh(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.lastConnected.IsZero() && now.Sub(b.lastConnected) < connectedCacheTTL
}

// Connect verifies the server is reachable, making up to 3 attempts with
// exponential backoff (2s, then 4s) between them before giving up.
func (c *Client) Connect(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < connectRetries; attempt++ {
		if err := c.Ping(ctx); err == nil {
			c.breaker.markConnected(time.Now())
			return nil
		} else {
			lastErr = err
		}
		if attempt == connectRetries-1 {
			break
		}
		delay := connectBaseDelay * time.Duration(1<<uint(attempt))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("connect to jellyfin after %d attempts: %w", connectRetries, lastErr)
}

// IsConnected reports whether the server was reachable recently, probing
// with a fresh Ping only when the cached result has gone stale.
func (c *Client) IsConnected(ctx context.Context) bool {
	if c.breaker.isFresh(time.Now()) {
		return true
	}
	if err := c.Ping(ctx); err != nil {
		return false
	}
	c.breaker.markConnected(time.Now())
	return true
}

// ErrCircuitOpen reports that the Jellyfin circuit breaker is currently
// rejecting requests after repeated upstream failures.
var ErrCircuitOpen = gobreaker.ErrOpenState

// IsCircuitOpen reports whether err was rejected by the circuit breaker
// rather than returned by the upstream server, so callers (e.g. the sync
// engine) can distinguish "Jellyfin is down" from "this one request
// failed" when deciding whether a recovery sync is warranted.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
