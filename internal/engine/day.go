package engine

import "time"

// Layouts for day keys and first-seen timestamps, as stored in the state
// database and written to ledger files.
const (
	DayFormat  = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

// ActiveDay returns the calendar day the ledger should reflect at wall
// time now: today, or yesterday while the local hour is still before the
// rollover hour.
//
// Pure function of its inputs so rollover behavior is testable without a
// real clock.
func ActiveDay(now time.Time, rolloverHour int) time.Time {
	if now.Hour() < rolloverHour {
		now = now.AddDate(0, 0, -1)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// EventDay returns the day an event belongs to, derived from the event's
// own timestamp. Events are attributed to the day they occurred on, not
// to whichever ledger happens to be active at poll time.
func EventDay(eventTime time.Time) string {
	return eventTime.Format(DayFormat)
}
