// Package ledger maintains the per-day human-readable attendance projection.
//
// Each day gets one CSV file, attendance_YYYY-MM-DD.csv, with columns
// id,name,status,first_seen_at and one row per roster person. The file is
// materialized with every person Absent at day start and rewritten in full
// whenever a person transitions to Present. The file is a derived
// projection: the store's presence markers are authoritative and the
// engine re-derives Present rows from them whenever it materializes.
//
// Every write goes through a temp file plus rename in the same directory,
// so a concurrent reader never observes a half-written ledger.
package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/roach88/rollcall/internal/roster"
)

// Row statuses. A row is Present iff a presence marker exists for
// (day, person) in the store.
const (
	StatusAbsent  = "Absent"
	StatusPresent = "Present"
)

var header = []string{"id", "name", "status", "first_seen_at"}

// Row is one ledger line for one person on one day.
type Row struct {
	ID          int64
	Name        string
	Status      string
	FirstSeenAt string
}

// Ledger writes per-day attendance CSV files into a single directory.
type Ledger struct {
	dir string
}

// New creates a ledger rooted at dir. The directory must exist.
func New(dir string) *Ledger {
	return &Ledger{dir: dir}
}

// Path returns the ledger file path for a day (day formatted YYYY-MM-DD).
func (l *Ledger) Path(day string) string {
	return filepath.Join(l.dir, "attendance_"+day+".csv")
}

// Exists reports whether a ledger file exists for the day.
func (l *Ledger) Exists(day string) bool {
	_, err := os.Stat(l.Path(day))
	return err == nil
}

// Materialize (re)creates the ledger for a day with one Absent row per
// roster person, sorted by id. Any prior content for that day is replaced.
func (l *Ledger) Materialize(day string, r *roster.Roster) error {
	people := r.People()
	rows := make([]Row, 0, len(people))
	for _, p := range people {
		rows = append(rows, Row{ID: p.ID, Name: p.Name, Status: StatusAbsent})
	}
	if err := l.writeRows(day, rows); err != nil {
		return fmt.Errorf("materialize ledger for %s: %w", day, err)
	}
	return nil
}

// MarkPresent flips the row for personID to Present with the given
// first-seen time and rewrites the file. Returns whether the file changed.
//
// Missing ledger file, missing row, and already-Present row are all
// no-ops returning false: the store marker is the source of truth and the
// next materialize reconciles the file.
func (l *Ledger) MarkPresent(day string, personID int64, firstSeenAt string) (updated bool, err error) {
	rows, err := l.Rows(day)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mark present in ledger for %s: %w", day, err)
	}

	for i := range rows {
		if rows[i].ID != personID {
			continue
		}
		if rows[i].Status == StatusPresent {
			return false, nil
		}
		rows[i].Status = StatusPresent
		rows[i].FirstSeenAt = firstSeenAt
		updated = true
		break
	}
	if !updated {
		return false, nil
	}

	if err := l.writeRows(day, rows); err != nil {
		return false, fmt.Errorf("mark present in ledger for %s: %w", day, err)
	}
	return true, nil
}

// Rows reads the ledger file for a day. Returns an error satisfying
// os.IsNotExist if no ledger has been materialized for that day.
func (l *Ledger) Rows(day string) ([]Row, error) {
	f, err := os.Open(l.Path(day))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = len(header)

	if _, err := cr.Read(); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		id, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q: %w", record[0], err)
		}
		rows = append(rows, Row{
			ID:          id,
			Name:        record[1],
			Status:      record[2],
			FirstSeenAt: record[3],
		})
	}

	return rows, nil
}

// writeRows writes the full file atomically: temp file in the same
// directory, then rename over the target.
func (l *Ledger) writeRows(day string, rows []Row) error {
	tmp, err := os.CreateTemp(l.dir, "attendance_"+day+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			strconv.FormatInt(row.ID, 10),
			row.Name,
			row.Status,
			row.FirstSeenAt,
		}
		if err := w.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}

	if err := os.Rename(tmpName, l.Path(day)); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
