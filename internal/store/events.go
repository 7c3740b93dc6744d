package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"klockd/internal/event"
	"klockd/internal/notify"
)

// recordNotFound is placed in the Notes field of the sentinel record
// returned for unknown keys, so viewers render a normal row instead of
// branching on lookup failure.
const recordNotFound = "Record not found"

// EventStore owns the collection of reminder events, keyed by name. It
// loads the backing CSV once at construction, persists on delete and
// whenever a sweep fires or resets a latch, and runs the per-tick
// recompute/notify sweep.
//
// The daemon touches the store from the sweep ticker and from socket
// command handlers, so all operations serialize on an internal mutex.
type EventStore struct {
	mu    sync.Mutex
	store map[string]*event.Event

	path       string
	thresholds event.Thresholds
	colour     func(event.Stage) string
	clk        clock.Clock
	dispatcher notify.Dispatcher
	log        *zap.SugaredLogger
}

// EventStoreOptions carries the injected collaborators. Colour may be
// nil when the caller has no display layer (tests, one-shot tools).
type EventStoreOptions struct {
	Path       string
	Thresholds event.Thresholds
	Colour     func(event.Stage) string
	Clock      clock.Clock
	Dispatcher notify.Dispatcher
	Logger     *zap.SugaredLogger
}

// NewEventStore builds the store and loads the backing file. A missing
// file is not an error; the store starts empty.
func NewEventStore(opts EventStoreOptions) (*EventStore, error) {
	s := &EventStore{
		store:      make(map[string]*event.Event),
		path:       opts.Path,
		thresholds: opts.Thresholds,
		colour:     opts.Colour,
		clk:        opts.Clock,
		dispatcher: opts.Dispatcher,
		log:        opts.Logger,
	}
	if s.colour == nil {
		s.colour = func(event.Stage) string { return "" }
	}
	if s.clk == nil {
		s.clk = clock.New()
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *EventStore) load() error {
	rows, err := loadRows(s.path)
	if err != nil {
		if isNotExist(err) {
			s.log.Infow("event store not found, using empty store", "path", s.path)
			return nil
		}
		return fmt.Errorf("loading event store: %w", err)
	}

	for i, row := range rows {
		ev, err := event.UnmarshalRow(row)
		if err != nil {
			s.log.Errorw("skipping malformed event row", "path", s.path, "line", i+1, "err", err)
			continue
		}
		s.store[ev.Name] = &ev
	}

	s.log.Infow("loaded event store", "path", s.path, "events", len(s.store))
	return nil
}

// Add inserts or overwrites the record keyed by its name. Last write
// wins; the caller decides when to persist.
func (s *EventStore) Add(ev event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[ev.Name] = &ev
}

// Delete removes the record if present and persists immediately.
// Deleting an unknown name is a no-op, not an error.
func (s *EventStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.store[name]; !ok {
		return nil
	}
	delete(s.store, name)
	return s.saveLocked()
}

// Get returns the record for name, or a sentinel record whose Notes
// field carries the not-found marker.
func (s *EventStore) Get(name string) event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev, ok := s.store[name]; ok {
		return *ev
	}
	return event.Event{Notes: recordNotFound}
}

// Events returns the display fields of every record, sorted by name.
// The latch flags are never included.
func (s *EventStore) Events() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]string, 0, len(s.store))
	for _, name := range s.sortedNamesLocked() {
		out = append(out, s.store[name].DisplayFields())
	}
	return out
}

// NumberOfEvents returns the record count.
func (s *EventStore) NumberOfEvents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.store)
}

// Save persists every record, full field list, sorted by name.
func (s *EventStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *EventStore) saveLocked() error {
	rows := make([][]string, 0, len(s.store))
	for _, name := range s.sortedNamesLocked() {
		rows = append(rows, s.store[name].MarshalRow())
	}
	if err := saveRows(s.path, rows); err != nil {
		return fmt.Errorf("saving event store: %w", err)
	}
	return nil
}

func (s *EventStore) sortedNamesLocked() []string {
	names := make([]string, 0, len(s.store))
	for name := range s.store {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sweep is the per-tick pass: for every record it resolves the
// effective due date, resets latches when the annual occurrence has
// rolled over, recomputes the remaining-time text and fires at most one
// stage notification. The store persists once at the end if anything
// fired or reset. A record with an unparseable date or time is skipped
// and logged; it never halts the sweep for the others.
func (s *EventStore) Sweep(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	dirty := false

	for _, name := range s.sortedNamesLocked() {
		ev := s.store[name]

		resolved, err := event.ResolveDueYear(ev.DateDue, now)
		if err != nil {
			s.log.Errorw("skipping event with bad due date", "event", name, "err", err)
			continue
		}
		if prev := ev.DueYear(); prev != 0 && resolved.Year() > prev {
			// The due date has rolled over to next year's occurrence;
			// the record gets a fresh set of warnings.
			ev.ResetLatches()
			dirty = true
			s.log.Infow("event rolled over, latches reset", "event", name, "due_year", resolved.Year())
		}
		ev.SetDueYear(resolved.Year())

		due, err := event.DueInstant(ev.DateDue, ev.TimeDue, now)
		if err != nil {
			s.log.Errorw("skipping event with bad due time", "event", name, "err", err)
			continue
		}

		left := int64(due.Sub(now) / time.Second)
		ev.Remaining = event.FormatSeconds(left)

		stage, fire := event.NextStage(left, s.thresholds, *ev)
		if !fire {
			continue
		}
		ev.MarkFired(stage)
		dirty = true

		n := notify.New(ev.Name, ev.Remaining, stage, s.colour(stage), now)
		if err := s.dispatcher.Dispatch(ctx, n); err != nil {
			// Display is fire-and-forget; a failed toast never rolls
			// back the latch.
			s.log.Errorw("notification dispatch failed", "event", name, "stage", string(stage), "err", err)
		}
	}

	if dirty {
		if err := s.saveLocked(); err != nil {
			s.log.Errorw("persisting event store after sweep failed", "err", err)
		}
	}
}

// NextDue scans for the upcoming event closest to its due instant,
// for the daemon's status surface. ok is false when the store is empty
// or every record is malformed.
func (s *EventStore) NextDue() (name, remaining string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	var best time.Duration

	for _, n := range s.sortedNamesLocked() {
		ev := s.store[n]
		due, err := event.DueInstant(ev.DateDue, ev.TimeDue, now)
		if err != nil {
			continue
		}
		left := due.Sub(now)
		if !ok || left < best {
			best = left
			name = ev.Name
			remaining = event.FormatSeconds(int64(left / time.Second))
			ok = true
		}
	}
	return name, remaining, ok
}
