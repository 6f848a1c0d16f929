package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PresenceMarker is one first-seen-today record.
type PresenceMarker struct {
	Day         string
	PersonID    int64
	FirstSeenAt string
}

// IsProcessed reports whether an event key has already been applied.
func (s *Store) IsProcessed(ctx context.Context, eventKey int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM processed_events WHERE event_key = ? LIMIT 1
	`, eventKey).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check processed: %w", err)
	}
	return true, nil
}

// FirstSeen returns the recorded first-seen time for (day, person),
// and whether a presence marker exists at all.
func (s *Store) FirstSeen(ctx context.Context, day string, personID int64) (firstSeenAt string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT first_seen_at FROM presence
		WHERE day = ? AND person_id = ?
		LIMIT 1
	`, day, personID).Scan(&firstSeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query first seen: %w", err)
	}
	return firstSeenAt, true, nil
}

// PresentOn returns every presence marker recorded for a day,
// ordered by person id. Used by the ledger repair pass.
//
// Returns an empty slice (not nil) if no markers exist.
func (s *Store) PresentOn(ctx context.Context, day string) ([]PresenceMarker, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, person_id, first_seen_at FROM presence
		WHERE day = ?
		ORDER BY person_id ASC
	`, day)
	if err != nil {
		return nil, fmt.Errorf("query presence: %w", err)
	}
	defer rows.Close()

	markers := []PresenceMarker{}
	for rows.Next() {
		var m PresenceMarker
		if err := rows.Scan(&m.Day, &m.PersonID, &m.FirstSeenAt); err != nil {
			return nil, fmt.Errorf("scan presence: %w", err)
		}
		markers = append(markers, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate presence: %w", err)
	}

	return markers, nil
}

// Meta returns the stored value for a metadata key, and whether it exists.
func (s *Store) Meta(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT v FROM meta WHERE k = ?
	`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get meta %q: %w", key, err)
	}
	return value, true, nil
}
