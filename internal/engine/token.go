package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// TickTokenGenerator produces correlation tokens for poll cycles. Every
// log line emitted while applying one poll batch carries the same token,
// so interleaved observations from a long run can be grouped per cycle.
type TickTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 tick tokens.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequenceGenerator returns tick-1, tick-2, ... for deterministic tests.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu sync.Mutex
	n  int
}

// Generate returns the next sequential token.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("tick-%d", g.n)
}
