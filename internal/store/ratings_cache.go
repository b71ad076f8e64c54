package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetCached returns a cached provider payload by key, reporting a miss when
// the row is absent or has already expired.
func (s *Store) GetCached(ctx context.Context, key string) (payload string, hit bool, err error) {
	var (
		payloadJSON string
		expiresRaw  string
	)
	row := s.db.QueryRowContext(ctx, `SELECT payload_json, expires_at FROM ratings_cache WHERE cache_key = ?`, key)
	if scanErr := row.Scan(&payloadJSON, &expiresRaw); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get cached rating %s: %w", key, scanErr)
	}

	expires, parseErr := parseTimeString(expiresRaw)
	if parseErr != nil || time.Now().After(expires) {
		return "", false, nil
	}
	return payloadJSON, true, nil
}

// PutCached stores a provider payload with an expiry, keyed by the caller's
// own cache key convention (the enricher uses "<provider>:id:<id>" or
// "<provider>:name:<kind>:<name>:<year>").
func (s *Store) PutCached(ctx context.Context, key, provider, payload string, expiresAt time.Time) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO ratings_cache (cache_key, provider, payload_json, fetched_at, expires_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(cache_key) DO UPDATE SET
            payload_json = excluded.payload_json,
            fetched_at = excluded.fetched_at,
            expires_at = excluded.expires_at
    `, key, provider, payload, now, expiresAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("put cached rating %s: %w", key, err)
	}
	return nil
}

// PurgeExpired deletes ratings_cache rows past their expiry and returns the
// number removed, called periodically by the orchestrator's maintenance loop.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ratings_cache WHERE expires_at < ?`, now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("purge expired ratings: %w", err)
	}
	return res.RowsAffected()
}
