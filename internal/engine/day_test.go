package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActiveDay(t *testing.T) {
	tests := []struct {
		name         string
		now          time.Time
		rolloverHour int
		want         string
	}{
		{
			name:         "midnight rollover, daytime",
			now:          time.Date(2026, 9, 1, 14, 30, 0, 0, time.UTC),
			rolloverHour: 0,
			want:         "2026-09-01",
		},
		{
			name:         "midnight rollover, just after midnight",
			now:          time.Date(2026, 9, 2, 0, 2, 0, 0, time.UTC),
			rolloverHour: 0,
			want:         "2026-09-02",
		},
		{
			name:         "rollover at 5, before rollover is yesterday",
			now:          time.Date(2026, 9, 2, 3, 0, 0, 0, time.UTC),
			rolloverHour: 5,
			want:         "2026-09-01",
		},
		{
			name:         "rollover at 5, at the boundary hour",
			now:          time.Date(2026, 9, 2, 5, 0, 0, 0, time.UTC),
			rolloverHour: 5,
			want:         "2026-09-02",
		},
		{
			name:         "rollover at 5, after boundary",
			now:          time.Date(2026, 9, 2, 6, 0, 0, 0, time.UTC),
			rolloverHour: 5,
			want:         "2026-09-02",
		},
		{
			name:         "month boundary",
			now:          time.Date(2026, 9, 1, 2, 0, 0, 0, time.UTC),
			rolloverHour: 4,
			want:         "2026-08-31",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ActiveDay(tt.now, tt.rolloverHour).Format(DayFormat)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEventDay_UsesEventTimestamp(t *testing.T) {
	at := time.Date(2026, 9, 2, 0, 2, 0, 0, time.UTC)
	assert.Equal(t, "2026-09-02", EventDay(at))
}

func TestSequenceGenerator(t *testing.T) {
	g := &SequenceGenerator{}
	assert.Equal(t, "tick-1", g.Generate())
	assert.Equal(t, "tick-2", g.Generate())
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	g := UUIDv7Generator{}
	a := g.Generate()
	b := g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
