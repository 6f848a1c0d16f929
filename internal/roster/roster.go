// Package roster loads the authoritative list of persons eligible to be
// marked present.
//
// The roster is a CSV file with an `id,name` header. It is read wholesale
// at startup and re-read on each day rollover; it is never written by the
// poller (export-users produces it from the terminal's user table).
package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Person is one roster entry. Identity is ID; Name is display-only.
type Person struct {
	ID   int64
	Name string
}

// Roster is an immutable id -> person mapping loaded from a CSV file.
type Roster struct {
	byID map[int64]Person
}

// Load reads a roster CSV from path.
//
// The header row must contain `id` and `name` columns (any order, extra
// columns ignored). Names are normalized to NFC so that lookups and ledger
// output are stable regardless of how the source file encoded them.
// A duplicate id keeps the last row, matching plain key/value import
// semantics.
func Load(path string) (*Roster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	r, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", path, err)
	}
	return r, nil
}

// Parse reads roster CSV content from r.
func Parse(r io.Reader) (*Roster, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty roster file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idCol, nameCol := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "id":
			idCol = i
		case "name":
			nameCol = i
		}
	}
	if idCol < 0 || nameCol < 0 {
		return nil, fmt.Errorf("header must contain id and name columns, got %v", header)
	}

	byID := make(map[int64]Person)
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		if idCol >= len(record) || nameCol >= len(record) {
			return nil, fmt.Errorf("row %d: missing columns", line)
		}

		id, err := strconv.ParseInt(strings.TrimSpace(record[idCol]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad id %q: %w", line, record[idCol], err)
		}

		byID[id] = Person{
			ID:   id,
			Name: norm.NFC.String(record[nameCol]),
		}
	}

	return &Roster{byID: byID}, nil
}

// Lookup returns the person for an id, and whether the id is on the roster.
func (r *Roster) Lookup(id int64) (Person, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// People returns all roster entries sorted by id.
func (r *Roster) People() []Person {
	people := make([]Person, 0, len(r.byID))
	for _, p := range r.byID {
		people = append(people, p)
	}
	sort.Slice(people, func(i, j int) bool { return people[i].ID < people[j].ID })
	return people
}

// Len returns the number of roster entries.
func (r *Roster) Len() int {
	return len(r.byID)
}
