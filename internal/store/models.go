package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"jellydiscord/internal/model"
)

const itemColumns = "id, name, kind, series_id, season_id, path, fingerprint, record_json, first_seen_at, last_seen_at, last_notified_at"

// saveColumns lists every column saveBatch writes, including the
// query-only columns (series_name, season/episode number, provider ids)
// that scanRecord does not need back since they're already present inside
// record_json.
const saveColumns = "id, name, kind, series_id, series_name, season_id, season_number, episode_number, path, fingerprint, imdb_id, tmdb_id, tvdb_id, record_json, first_seen_at, last_seen_at, last_notified_at"

// StoredRecord pairs a Media Record with the store's own bookkeeping fields,
// none of which belong on the wire representation Jellyfin hands us.
type StoredRecord struct {
	Record         model.Record
	FirstSeenAt    time.Time
	LastSeenAt     time.Time
	LastNotifiedAt *time.Time
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*StoredRecord, error) {
	var (
		id, name, kind       string
		seriesID, seasonID   sql.NullString
		path, fingerprint    sql.NullString
		recordJSON           string
		firstSeenRaw         string
		lastSeenRaw          string
		lastNotifiedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id, &name, &kind, &seriesID, &seasonID, &path, &fingerprint,
		&recordJSON, &firstSeenRaw, &lastSeenRaw, &lastNotifiedRaw,
	); err != nil {
		return nil, err
	}

	var record model.Record
	if err := json.Unmarshal([]byte(recordJSON), &record); err != nil {
		return nil, fmt.Errorf("decode record_json for %s: %w", id, err)
	}

	stored := &StoredRecord{Record: record}
	if t, err := parseTimeString(firstSeenRaw); err == nil {
		stored.FirstSeenAt = t
	}
	if t, err := parseTimeString(lastSeenRaw); err == nil {
		stored.LastSeenAt = t
	}
	if lastNotifiedRaw.Valid {
		if t, err := parseTimeString(lastNotifiedRaw.String); err == nil {
			stored.LastNotifiedAt = &t
		}
	}
	return stored, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value int) any {
	if value == 0 {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	return time.Parse(time.RFC3339Nano, value)
}

// saveColumnCount is the number of bound parameters saveColumns needs per
// row, used to size a multi-row upsert's placeholder groups.
const saveColumnCount = 17

// makePlaceholders returns a comma-joined "?, ?, ..." group of count
// placeholders, for one row's worth of a multi-row VALUES clause.
func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	out := make([]byte, 0, count*2-1)
	for i := 0; i < count; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}

// makeRowGroups returns rows comma-joined "(?, ?, ...)" placeholder groups,
// one per row, for a multi-row VALUES(...),(...),... clause.
func makeRowGroups(rows int) string {
	group := "(" + makePlaceholders(saveColumnCount) + ")"
	groups := make([]string, rows)
	for i := range groups {
		groups[i] = group
	}
	return strings.Join(groups, ",")
}
