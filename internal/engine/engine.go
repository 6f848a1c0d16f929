package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/rollcall/internal/device"
	"github.com/roach88/rollcall/internal/ledger"
	"github.com/roach88/rollcall/internal/metrics"
	"github.com/roach88/rollcall/internal/roster"
	"github.com/roach88/rollcall/internal/store"
)

// metaCurrentDay is the meta key recording which day the ledger reflects.
const metaCurrentDay = "current_ledger_day"

// Config carries the engine's tunables.
type Config struct {
	// PollInterval is the sleep between ticks.
	PollInterval time.Duration

	// RolloverHour is the local hour at which the active day advances
	// (0 = midnight). Before this hour the active day is still yesterday.
	RolloverHour int

	// RosterPath is the roster CSV, re-read on every day rollover.
	RosterPath string

	// Now supplies wall-clock time. Nil means time.Now. Injected so the
	// rollover decision is a pure function of (now, pointer, config).
	Now func() time.Time
}

// Engine folds the terminal's raw event stream into durable presence
// state and the daily ledger. See the package documentation for the tick
// phases and the single-writer model.
type Engine struct {
	store     *store.Store
	ledger    *ledger.Ledger
	source    device.Source
	collector *metrics.Collector
	cfg       Config
	tokens    TickTokenGenerator

	roster       *roster.Roster
	activeDay    string
	presentToday int
}

// New creates an engine. All of st, led, src and col must be non-nil;
// a nil tokens defaults to UUIDv7Generator.
func New(st *store.Store, led *ledger.Ledger, src device.Source, col *metrics.Collector, cfg Config, tokens TickTokenGenerator) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if tokens == nil {
		tokens = UUIDv7Generator{}
	}
	return &Engine{
		store:     st,
		ledger:    led,
		source:    src,
		collector: col,
		cfg:       cfg,
		tokens:    tokens,
	}
}

// Run executes the tick loop until ctx is cancelled.
//
// The initial roster load and day check are fatal: without them there is
// no day-zero state to poll against. After that, every fault is contained
// to its tick or its event and retried by the natural next-tick cycle.
func (e *Engine) Run(ctx context.Context) error {
	r, err := roster.Load(e.cfg.RosterPath)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	e.roster = r
	slog.Info("roster loaded", "path", e.cfg.RosterPath, "persons", r.Len())

	if err := e.dayCheck(ctx); err != nil {
		return fmt.Errorf("establish day state: %w", err)
	}
	slog.Info("poller started", "interval", e.cfg.PollInterval, "day", e.activeDay)

	for {
		e.Tick(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.cfg.PollInterval):
		}
	}
}

// Tick runs one day-check/poll/apply cycle. Run calls this in a loop;
// tests call it directly to step the engine deterministically.
func (e *Engine) Tick(ctx context.Context) {
	log := slog.With("tick", e.tokens.Generate())

	if err := e.dayCheck(ctx); err != nil {
		log.Error("day check failed", "error", err)
		return
	}
	e.poll(ctx, log)
}

// dayCheck ensures the ledger for the active day exists and is current.
//
// Rebuilds when the day has rolled over, on first run, and when the
// ledger file went missing. Rebuilding reloads the roster, materializes
// every person Absent, then re-derives Present rows from the store's
// presence markers - the markers are authoritative, so a crash between a
// store write and a ledger write heals here.
func (e *Engine) dayCheck(ctx context.Context) error {
	day := ActiveDay(e.cfg.Now(), e.cfg.RolloverHour).Format(DayFormat)

	current, _, err := e.store.Meta(ctx, metaCurrentDay)
	if err != nil {
		return err
	}
	// activeDay is empty until this process has rebuilt once, so a
	// restart always runs the repair pass even when the pointer and the
	// ledger file both look current.
	if current == day && e.activeDay == day && e.ledger.Exists(day) {
		return nil
	}

	r, err := roster.Load(e.cfg.RosterPath)
	if err != nil {
		return fmt.Errorf("reload roster: %w", err)
	}
	e.roster = r

	if err := e.ledger.Materialize(day, r); err != nil {
		return err
	}

	markers, err := e.store.PresentOn(ctx, day)
	if err != nil {
		return err
	}
	for _, m := range markers {
		if _, err := e.ledger.MarkPresent(day, m.PersonID, m.FirstSeenAt); err != nil {
			return err
		}
	}

	if err := e.store.SetMeta(ctx, metaCurrentDay, day); err != nil {
		return err
	}

	e.activeDay = day
	e.presentToday = len(markers)
	e.collector.SetPresentToday(e.presentToday)
	slog.Info("ledger materialized",
		"day", day,
		"persons", r.Len(),
		"already_present", len(markers),
		"file", e.ledger.Path(day))
	return nil
}

// poll reads the full event list from the terminal and applies it.
// Any connect or read failure abandons the whole tick; nothing is
// mutated and the next tick retries.
func (e *Engine) poll(ctx context.Context, log *slog.Logger) {
	sess, err := e.source.Connect(ctx)
	if err != nil {
		e.collector.RecordPollError()
		log.Error("poll failed", "error", err)
		return
	}
	defer sess.Close()

	events, err := sess.Attendance(ctx)
	if err != nil {
		e.collector.RecordPollError()
		log.Error("poll failed", "error", err)
		return
	}

	// Chronological order makes "first seen" well-defined even when the
	// device reports out of order; stable sort keeps device order for
	// equal timestamps.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time.Before(events[j].Time)
	})

	for _, ev := range events {
		e.apply(ctx, log, ev)
	}
}

// apply folds one event. Store faults are contained to this event: later
// events in the batch are independent and still get their chance.
func (e *Engine) apply(ctx context.Context, log *slog.Logger, ev device.Event) {
	key := ev.Time.Unix()

	// Mark processed before any presence logic, known person or not: an
	// event is never looked at again after its first sighting.
	inserted, err := e.store.MarkProcessed(ctx, key)
	if err != nil {
		log.Error("store write failed, skipping event", "event_key", key, "error", err)
		return
	}
	if !inserted {
		// Already folded in a prior cycle, or repeated within this batch.
		return
	}
	e.collector.RecordProcessed()

	person, ok := e.roster.Lookup(ev.PersonID)
	if !ok {
		e.collector.RecordUnknownPerson()
		log.Warn("event for unknown person",
			"person_id", ev.PersonID,
			"at", ev.Time.Format(TimeFormat))
		return
	}

	day := EventDay(ev.Time)
	firstSeen, already, err := e.store.FirstSeen(ctx, day, ev.PersonID)
	if err != nil {
		log.Error("store read failed, skipping event", "event_key", key, "error", err)
		return
	}
	if already {
		e.collector.RecordDuplicateScan()
		log.Info("already marked present",
			"person", person.Name,
			"person_id", person.ID,
			"day", day,
			"first_seen_at", firstSeen,
			"scanned_at", ev.Time.Format(TimeFormat))
		return
	}

	seenAt := ev.Time.Format(TimeFormat)
	if err := e.store.MarkPresent(ctx, day, ev.PersonID, seenAt); err != nil {
		log.Error("store write failed, skipping event", "event_key", key, "error", err)
		return
	}
	e.collector.RecordPresence()
	if day == e.activeDay {
		e.presentToday++
		e.collector.SetPresentToday(e.presentToday)
	}

	// The marker above is committed; if this ledger write is lost the
	// next materialize re-derives the row from it.
	updated, err := e.ledger.MarkPresent(day, ev.PersonID, seenAt)
	if err != nil {
		log.Error("ledger update failed", "person_id", person.ID, "day", day, "error", err)
		return
	}
	log.Info("marked present",
		"person", person.Name,
		"person_id", person.ID,
		"day", day,
		"first_seen_at", seenAt,
		"ledger_updated", updated)
}
