package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"jellydiscord/internal/model"
)

// SyncStatus mirrors the single-row sync_status bookkeeping table.
type SyncStatus struct {
	LastSyncType     model.SyncType
	LastSyncStarted  time.Time
	LastSyncFinished time.Time
	LastSyncError    string
	ItemsScanned     int
	ItemsChanged     int
	ItemsNew         int
}

// RecordSyncStart stamps the start of a reconciliation pass.
func (s *Store) RecordSyncStart(ctx context.Context, syncType model.SyncType, started time.Time) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO sync_status (id, last_sync_type, last_sync_started, items_scanned, items_changed, items_new)
        VALUES (1, ?, ?, 0, 0, 0)
        ON CONFLICT(id) DO UPDATE SET
            last_sync_type = excluded.last_sync_type,
            last_sync_started = excluded.last_sync_started,
            last_sync_error = NULL
    `, string(syncType), started.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record sync start: %w", err)
	}
	return nil
}

// RecordSyncFinish stamps the completion of a reconciliation pass, including
// a non-empty syncErr when the pass failed.
func (s *Store) RecordSyncFinish(ctx context.Context, finished time.Time, scanned, changed, added int, syncErr error) error {
	var errText any
	if syncErr != nil {
		errText = syncErr.Error()
	}
	_, err := s.db.ExecContext(ctx, `
        UPDATE sync_status
        SET last_sync_finished = ?, items_scanned = ?, items_changed = ?, items_new = ?, last_sync_error = ?
        WHERE id = 1
    `, finished.UTC().Format(time.RFC3339Nano), scanned, changed, added, errText)
	if err != nil {
		return fmt.Errorf("record sync finish: %w", err)
	}
	return nil
}

// LastSync returns the current sync bookkeeping row, or the zero value when
// no sync has ever run.
func (s *Store) LastSync(ctx context.Context) (SyncStatus, error) {
	var (
		status                           SyncStatus
		syncType                         sql.NullString
		startedRaw, finishedRaw, errText sql.NullString
	)
	row := s.db.QueryRowContext(ctx, `
        SELECT last_sync_type, last_sync_started, last_sync_finished, last_sync_error,
               items_scanned, items_changed, items_new
        FROM sync_status WHERE id = 1
    `)
	err := row.Scan(&syncType, &startedRaw, &finishedRaw, &errText,
		&status.ItemsScanned, &status.ItemsChanged, &status.ItemsNew)
	if errors.Is(err, sql.ErrNoRows) {
		return SyncStatus{}, nil
	}
	if err != nil {
		return SyncStatus{}, fmt.Errorf("last sync: %w", err)
	}
	status.LastSyncType = model.SyncType(syncType.String)
	status.LastSyncError = errText.String
	if startedRaw.Valid {
		if t, perr := parseTimeString(startedRaw.String); perr == nil {
			status.LastSyncStarted = t
		}
	}
	if finishedRaw.Valid {
		if t, perr := parseTimeString(finishedRaw.String); perr == nil {
			status.LastSyncFinished = t
		}
	}
	return status, nil
}

// GetState reads a single key from the service_state table.
func (s *Store) GetState(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM service_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get state %s: %w", key, err)
	}
	return value, true, nil
}

// PutState upserts a key in the service_state table, used for small bits of
// durable state like the last vacuum, maintenance, and startup timestamps.
func (s *Store) PutState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO service_state (key, value, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
    `, key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("put state %s: %w", key, err)
	}
	return nil
}

// RecordMaintenanceRun stamps the service_state singleton with the time of
// the most recent maintenance cycle (vacuum + cache purge), per the Service
// State entity in spec.md §3.
func (s *Store) RecordMaintenanceRun(ctx context.Context, when time.Time) error {
	return s.PutState(ctx, stateLastMaintenance, when.UTC().Format(time.RFC3339Nano))
}

// RecordStartup stamps the service_state singleton with the time this
// process last started, per the Service State entity in spec.md §3.
func (s *Store) RecordStartup(ctx context.Context, when time.Time) error {
	return s.PutState(ctx, stateLastStartup, when.UTC().Format(time.RFC3339Nano))
}
