// Package store persists Media Records, sync bookkeeping, and cached
// provider ratings in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"jellydiscord/internal/config"
	"jellydiscord/internal/model"
)

// saveBatchChunkSize bounds how many rows SaveBatch commits in one
// transaction (and retries row by row if that transaction fails); each
// statement inside it holds at most multiRowInsertSize rows.
const saveBatchChunkSize = 400

// Store manages media item persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the bridge database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DBPath())
}

// OpenPath opens (or creates) the database at an explicit path, independent
// of a loaded Config. Used by tests and by the CLI for pointing at a
// non-default database file.
func OpenPath(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save inserts or updates a single Media Record.
func (s *Store) Save(ctx context.Context, record *model.Record) error {
	if record == nil {
		return errors.New("record is nil")
	}
	return s.saveBatch(ctx, []*model.Record{record})
}

// BatchResult reports partial failures from SaveBatch so a sync run can
// keep going instead of aborting an entire batch over one bad record.
type BatchResult struct {
	Saved  int
	Failed map[string]error
}

// SaveBatch upserts many records in chunked transactions. A row-level
// failure inside a chunk falls back to saving that chunk's rows one at a
// time so a single malformed record doesn't sink its neighbors.
func (s *Store) SaveBatch(ctx context.Context, records []*model.Record) (BatchResult, error) {
	result := BatchResult{Failed: make(map[string]error)}
	for start := 0; start < len(records); start += saveBatchChunkSize {
		end := start + saveBatchChunkSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]
		if err := s.saveBatch(ctx, chunk); err != nil {
			for _, rec := range chunk {
				if rec == nil {
					continue
				}
				if err := s.Save(ctx, rec); err != nil {
					result.Failed[rec.ID] = err
					continue
				}
				result.Saved++
			}
			continue
		}
		result.Saved += len(chunk)
	}
	return result, nil
}

// saveUpsertConflictClause is shared by every multi-row saveBatch statement:
// on a conflicting id, every column but the append-only first_seen_at is
// refreshed from the incoming row.
const saveUpsertConflictClause = `
    ON CONFLICT(id) DO UPDATE SET
        name = excluded.name,
        kind = excluded.kind,
        series_id = excluded.series_id,
        series_name = excluded.series_name,
        season_id = excluded.season_id,
        season_number = excluded.season_number,
        episode_number = excluded.episode_number,
        path = excluded.path,
        fingerprint = excluded.fingerprint,
        imdb_id = excluded.imdb_id,
        tmdb_id = excluded.tmdb_id,
        tvdb_id = excluded.tvdb_id,
        record_json = excluded.record_json,
        last_seen_at = excluded.last_seen_at
`

// multiRowInsertSize bounds how many rows go into a single multi-row VALUES
// clause; kept well under SQLite's bound-parameter ceiling (17 params/row).
const multiRowInsertSize = 50

// saveBatch upserts records inside a single transaction, preferring one
// multi-row INSERT...VALUES per multiRowInsertSize-row group over a
// row-by-row prepared statement, per spec.md §4.A.
func (s *Store) saveBatch(ctx context.Context, records []*model.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)

	for start := 0; start < len(records); start += multiRowInsertSize {
		end := start + multiRowInsertSize
		if end > len(records) {
			end = len(records)
		}
		if err := saveRowGroup(ctx, tx, records[start:end], now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// saveRowGroup upserts one multi-row VALUES(...),(...),... group, skipping
// nil entries (SaveBatch may carry them for partial-failure bookkeeping).
func saveRowGroup(ctx context.Context, tx *sql.Tx, records []*model.Record, now string) error {
	args := make([]any, 0, len(records)*saveColumnCount)
	rowCount := 0
	for _, record := range records {
		if record == nil {
			continue
		}
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", record.ID, err)
		}
		args = append(args,
			record.ID,
			record.Name,
			string(record.Kind),
			nullableString(record.SeriesID),
			nullableString(record.SeriesName),
			nullableString(record.SeasonID),
			nullableInt(record.SeasonNumber),
			nullableInt(record.EpisodeNumber),
			nullableString(record.File.Path),
			record.Fingerprint(),
			nullableString(record.Providers.IMDB),
			nullableString(record.Providers.TMDB),
			nullableString(record.Providers.TVDB),
			string(payload),
			now,
			now,
			nil,
		)
		rowCount++
	}
	if rowCount == 0 {
		return nil
	}

	query := `INSERT INTO media_items (` + saveColumns + `) VALUES ` + makeRowGroups(rowCount) + saveUpsertConflictClause
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save %d records: %w", rowCount, err)
	}
	return nil
}

// Get fetches a stored record by id.
func (s *Store) Get(ctx context.Context, id string) (*StoredRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM media_items WHERE id = ?`, id)
	stored, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	return stored, nil
}

// GetFingerprint returns only the stored fingerprint for an id, avoiding a
// full record decode when the caller only needs to check for changes.
func (s *Store) GetFingerprint(ctx context.Context, id string) (string, bool, error) {
	var fingerprint string
	err := s.db.QueryRowContext(ctx, `SELECT fingerprint FROM media_items WHERE id = ?`, id).Scan(&fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get fingerprint %s: %w", id, err)
	}
	return fingerprint, true, nil
}

// GetByKind lists stored records of a given kind, newest-first by ingest
// timestamp. A non-positive limit returns every matching record.
func (s *Store) GetByKind(ctx context.Context, kind model.Kind, limit int) ([]*StoredRecord, error) {
	query := `SELECT ` + itemColumns + ` FROM media_items WHERE kind = ? ORDER BY last_seen_at DESC`
	args := []any{string(kind)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query by kind: %w", err)
	}
	defer rows.Close()

	var out []*StoredRecord
	for rows.Next() {
		stored, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, stored)
	}
	return out, rows.Err()
}

// Delete removes a stored record by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM media_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	return nil
}

// MarkNotified stamps the time a record last triggered a successful Discord
// dispatch, used to avoid re-notifying on a retried sync pass.
func (s *Store) MarkNotified(ctx context.Context, id string, when time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE media_items SET last_notified_at = ? WHERE id = ?`,
		when.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("mark notified %s: %w", id, err)
	}
	return nil
}

// Stats summarizes the store's current content per spec.md §4.A: counts by
// kind, the total row count, items added in the last 24h, and the on-disk
// database size.
type Stats struct {
	ByKind          map[model.Kind]int
	Total           int
	RecentAdditions int
	DiskSizeBytes   int64
}

// Stats returns a snapshot of the store's content and footprint.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(1) FROM media_items GROUP BY kind`)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()

	byKind := make(map[model.Kind]int)
	total := 0
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return Stats{}, err
		}
		byKind[model.Kind(kind)] = count
		total += count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	cutoff := time.Now().Add(-24 * time.Hour).UTC().Format(time.RFC3339Nano)
	var recent int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM media_items WHERE first_seen_at >= ?`, cutoff).Scan(&recent); err != nil {
		return Stats{}, fmt.Errorf("stats: recent additions: %w", err)
	}

	var sizeBytes int64
	if info, statErr := os.Stat(s.path); statErr == nil {
		sizeBytes = info.Size()
	}

	return Stats{ByKind: byKind, Total: total, RecentAdditions: recent, DiskSizeBytes: sizeBytes}, nil
}

// State keys for the singleton service_state table.
const (
	stateLastVacuumAt    = "last_vacuum_at"
	stateLastMaintenance = "last_maintenance_at"
	stateLastStartup     = "last_startup_at"
)

// Vacuum reclaims free space left by deleted rows and records the timestamp
// in service_state, per spec.md §4.A and the Service State entity in §3.
func (s *Store) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	if err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	if err := s.PutState(ctx, stateLastVacuumAt, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("vacuum: record timestamp: %w", err)
	}
	return nil
}

// Path returns the database file path this store was opened against.
func (s *Store) Path() string {
	return s.path
}
