package store

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMarkProcessed_NewKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	inserted, err := s.MarkProcessed(ctx, 1700000000)
	if err != nil {
		t.Fatalf("MarkProcessed() failed: %v", err)
	}
	if !inserted {
		t.Error("expected inserted=true for new key")
	}
}

func TestMarkProcessed_DuplicateKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.MarkProcessed(ctx, 1700000000); err != nil {
		t.Fatalf("first MarkProcessed() failed: %v", err)
	}

	inserted, err := s.MarkProcessed(ctx, 1700000000)
	if err != nil {
		t.Fatalf("second MarkProcessed() failed: %v", err)
	}
	if inserted {
		t.Error("expected inserted=false for duplicate key")
	}
}

func TestMarkProcessed_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := s1.MarkProcessed(ctx, 42); err != nil {
		t.Fatalf("MarkProcessed() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	inserted, err := s2.MarkProcessed(ctx, 42)
	if err != nil {
		t.Fatalf("MarkProcessed() after reopen failed: %v", err)
	}
	if inserted {
		t.Error("marker did not survive reopen")
	}
}

func TestMarkPresent_FirstWriteWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.MarkPresent(ctx, "2026-09-01", 7, "2026-09-01 08:00:00"); err != nil {
		t.Fatalf("MarkPresent() failed: %v", err)
	}

	// A second write with a different time must be a no-op.
	if err := s.MarkPresent(ctx, "2026-09-01", 7, "2026-09-01 09:30:00"); err != nil {
		t.Fatalf("second MarkPresent() failed: %v", err)
	}

	got, ok, err := s.FirstSeen(ctx, "2026-09-01", 7)
	if err != nil {
		t.Fatalf("FirstSeen() failed: %v", err)
	}
	if !ok {
		t.Fatal("expected presence marker to exist")
	}
	if got != "2026-09-01 08:00:00" {
		t.Errorf("first_seen_at = %q, want %q", got, "2026-09-01 08:00:00")
	}
}

func TestMarkPresent_DayIsolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.MarkPresent(ctx, "2026-09-01", 7, "2026-09-01 08:00:00"); err != nil {
		t.Fatalf("MarkPresent() failed: %v", err)
	}

	_, ok, err := s.FirstSeen(ctx, "2026-09-02", 7)
	if err != nil {
		t.Fatalf("FirstSeen() failed: %v", err)
	}
	if ok {
		t.Error("presence for one day leaked into another day")
	}
}

func TestSetMeta_Overwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SetMeta(ctx, "current_ledger_day", "2026-08-31"); err != nil {
		t.Fatalf("SetMeta() failed: %v", err)
	}
	if err := s.SetMeta(ctx, "current_ledger_day", "2026-09-01"); err != nil {
		t.Fatalf("second SetMeta() failed: %v", err)
	}

	got, ok, err := s.Meta(ctx, "current_ledger_day")
	if err != nil {
		t.Fatalf("Meta() failed: %v", err)
	}
	if !ok {
		t.Fatal("expected meta key to exist")
	}
	if got != "2026-09-01" {
		t.Errorf("meta = %q, want %q", got, "2026-09-01")
	}
}
