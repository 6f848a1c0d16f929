// Package device defines the boundary to the attendance terminal.
//
// The terminal is a re-queryable log, not a consuming queue: every poll
// returns the full attendance history currently held by the device, so
// callers must deduplicate. Events may repeat across polls and may arrive
// out of order; within one poll batch they are typically monotonic.
//
// The zk subpackage implements this boundary for ZKTeco-class terminals.
package device

import (
	"context"
	"time"
)

// Event is one raw check-in record as reported by the terminal.
type Event struct {
	PersonID int64
	Time     time.Time
	// Status is the device's punch code (0 check-in, 1 check-out on most
	// firmwares). The sync engine ignores it; the fetch command exports it.
	Status uint8
}

// User is one entry from the terminal's internal user table.
type User struct {
	ID   int64
	Name string
}

// Session is one open connection to the terminal. Any error, including a
// timeout, invalidates the whole poll attempt; callers close the session
// and retry from Connect on the next cycle.
type Session interface {
	// Attendance returns the full list of raw attendance events currently
	// known to the terminal.
	Attendance(ctx context.Context) ([]Event, error)
	Close() error
}

// Source opens sessions to a terminal.
type Source interface {
	Connect(ctx context.Context) (Session, error)
}
