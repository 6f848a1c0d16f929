package store

import (
	"context"
	"testing"
)

func TestIsProcessed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ok, err := s.IsProcessed(ctx, 99)
	if err != nil {
		t.Fatalf("IsProcessed() failed: %v", err)
	}
	if ok {
		t.Error("expected false for unseen key")
	}

	if _, err := s.MarkProcessed(ctx, 99); err != nil {
		t.Fatalf("MarkProcessed() failed: %v", err)
	}

	ok, err = s.IsProcessed(ctx, 99)
	if err != nil {
		t.Fatalf("IsProcessed() failed: %v", err)
	}
	if !ok {
		t.Error("expected true for processed key")
	}
}

func TestFirstSeen_Absent(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.FirstSeen(context.Background(), "2026-09-01", 1)
	if err != nil {
		t.Fatalf("FirstSeen() failed: %v", err)
	}
	if ok {
		t.Error("expected no marker for empty store")
	}
}

func TestPresentOn_Empty(t *testing.T) {
	s := openTestStore(t)

	markers, err := s.PresentOn(context.Background(), "2026-09-01")
	if err != nil {
		t.Fatalf("PresentOn() failed: %v", err)
	}
	if markers == nil {
		t.Error("expected empty slice, got nil")
	}
	if len(markers) != 0 {
		t.Errorf("expected no markers, got %d", len(markers))
	}
}

func TestPresentOn_OrderedByPerson(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	day := "2026-09-01"
	for _, m := range []PresenceMarker{
		{Day: day, PersonID: 3, FirstSeenAt: "2026-09-01 08:15:00"},
		{Day: day, PersonID: 1, FirstSeenAt: "2026-09-01 08:02:00"},
		{Day: day, PersonID: 2, FirstSeenAt: "2026-09-01 08:40:00"},
	} {
		if err := s.MarkPresent(ctx, m.Day, m.PersonID, m.FirstSeenAt); err != nil {
			t.Fatalf("MarkPresent() failed: %v", err)
		}
	}
	// A marker on another day must not show up.
	if err := s.MarkPresent(ctx, "2026-09-02", 4, "2026-09-02 08:00:00"); err != nil {
		t.Fatalf("MarkPresent() failed: %v", err)
	}

	markers, err := s.PresentOn(ctx, day)
	if err != nil {
		t.Fatalf("PresentOn() failed: %v", err)
	}
	if len(markers) != 3 {
		t.Fatalf("expected 3 markers, got %d", len(markers))
	}
	for i, wantID := range []int64{1, 2, 3} {
		if markers[i].PersonID != wantID {
			t.Errorf("markers[%d].PersonID = %d, want %d", i, markers[i].PersonID, wantID)
		}
	}
}

func TestMeta_Absent(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.Meta(context.Background(), "never_set")
	if err != nil {
		t.Fatalf("Meta() failed: %v", err)
	}
	if ok {
		t.Error("expected ok=false for unset key")
	}
}
