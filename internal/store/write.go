package store

import (
	"context"
	"fmt"
)

// MarkProcessed inserts a processed-event marker for the given event key.
// Returns whether a new marker was inserted.
//
// Uses ON CONFLICT(event_key) DO NOTHING so a replayed key is silently
// ignored and inserted=false is returned. The insert is a single atomic
// statement: a crash immediately after it commits leaves the marker in
// place, which is exactly what guarantees the event is never re-applied.
func (s *Store) MarkProcessed(ctx context.Context, eventKey int64) (inserted bool, err error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO processed_events (event_key)
		VALUES (?)
		ON CONFLICT(event_key) DO NOTHING
	`, eventKey)
	if err != nil {
		return false, fmt.Errorf("mark processed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark processed: rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// MarkPresent inserts a presence marker for (day, person).
//
// Uses ON CONFLICT(day, person_id) DO NOTHING: once a marker exists its
// first_seen_at can never be overwritten, even if a caller passes a
// different value. The engine checks FirstSeen before calling this, but
// the constraint holds regardless.
func (s *Store) MarkPresent(ctx context.Context, day string, personID int64, firstSeenAt string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO presence (day, person_id, first_seen_at)
		VALUES (?, ?, ?)
		ON CONFLICT(day, person_id) DO NOTHING
	`, day, personID, firstSeenAt)
	if err != nil {
		return fmt.Errorf("mark present: %w", err)
	}
	return nil
}

// SetMeta stores a metadata key/value pair, replacing any existing value.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (k, v)
		VALUES (?, ?)
		ON CONFLICT(k) DO UPDATE SET v = excluded.v
	`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}
	return nil
}
