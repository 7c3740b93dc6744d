package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"klockd/internal/event"
	"klockd/internal/notify"
)

// captureDispatcher records every dispatched notification.
type captureDispatcher struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (d *captureDispatcher) Dispatch(_ context.Context, n notify.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
	return nil
}

func (d *captureDispatcher) all() []notify.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]notify.Notification, len(d.sent))
	copy(out, d.sent)
	return out
}

func setupEventStore(t *testing.T) (*EventStore, *captureDispatcher, clock.FakeClock, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.csv")

	clk := clock.NewFake()
	clk.Set(time.Date(2024, time.November, 27, 12, 0, 0, 0, time.UTC))

	disp := &captureDispatcher{}
	s, err := NewEventStore(EventStoreOptions{
		Path:       path,
		Thresholds: event.DefaultThresholds(),
		Clock:      clk,
		Dispatcher: disp,
		Logger:     zap.NewNop().Sugar(),
	})
	require.NoError(t, err, "Failed to create event store")
	return s, disp, clk, path
}

// reopen loads a fresh store from the same backing file.
func reopen(t *testing.T, path string, clk clock.Clock, disp notify.Dispatcher) *EventStore {
	t.Helper()
	s, err := NewEventStore(EventStoreOptions{
		Path:       path,
		Thresholds: event.DefaultThresholds(),
		Clock:      clk,
		Dispatcher: disp,
		Logger:     zap.NewNop().Sugar(),
	})
	require.NoError(t, err)
	return s
}

func TestEventStoreStartsEmptyWithoutFile(t *testing.T) {
	s, _, _, path := setupEventStore(t)
	assert.Equal(t, 0, s.NumberOfEvents())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "missing backing file must not be created by load")
}

func TestEventStoreAddGet(t *testing.T) {
	s, _, _, _ := setupEventStore(t)

	s.Add(event.Event{Name: "Xmas", DateDue: "25 December 2024", TimeDue: "08:00", Category: "Holiday"})
	assert.Equal(t, 1, s.NumberOfEvents())

	ev := s.Get("Xmas")
	assert.Equal(t, "25 December 2024", ev.DateDue)

	// Last write wins.
	s.Add(event.Event{Name: "Xmas", DateDue: "25 December 2024", TimeDue: "09:30", Category: "Holiday"})
	assert.Equal(t, 1, s.NumberOfEvents())
	assert.Equal(t, "09:30", s.Get("Xmas").TimeDue)
}

func TestEventStoreGetMissingReturnsSentinel(t *testing.T) {
	s, _, _, _ := setupEventStore(t)

	ev := s.Get("nope")
	fields := ev.DisplayFields()
	require.Len(t, fields, 7)
	assert.Equal(t, "Record not found", fields[5], "error marker lives in the notes field")
	for i, f := range fields {
		if i == 5 {
			continue
		}
		assert.Empty(t, f)
	}
	assert.False(t, ev.Stage1Fired)
	assert.False(t, ev.NowFired)
}

func TestEventStoreDeleteMissingIsNoOp(t *testing.T) {
	s, _, _, path := setupEventStore(t)
	s.Add(event.Event{Name: "Keep", DateDue: "1 May 2025", TimeDue: "10:00"})
	require.NoError(t, s.Save())

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, s.Delete("nope"))
	assert.Equal(t, 1, s.NumberOfEvents())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "deleting a missing key must not rewrite the file")
}

func TestEventStoreDeletePersistsImmediately(t *testing.T) {
	s, disp, clk, path := setupEventStore(t)
	s.Add(event.Event{Name: "Gone", DateDue: "1 May 2025", TimeDue: "10:00"})
	s.Add(event.Event{Name: "Keep", DateDue: "1 May 2025", TimeDue: "10:00"})
	require.NoError(t, s.Delete("Gone"))

	s2 := reopen(t, path, clk, disp)
	assert.Equal(t, 1, s2.NumberOfEvents())
	assert.Equal(t, "Record not found", s2.Get("Gone").Notes)
}

func TestEventStoreEventsSortedAndTrimmed(t *testing.T) {
	s, _, _, _ := setupEventStore(t)
	s.Add(event.Event{Name: "Beta", DateDue: "1 May 2025", TimeDue: "10:00", NowFired: true})
	s.Add(event.Event{Name: "Alpha", DateDue: "2 May 2025", TimeDue: "11:00", Stage1Fired: true})

	rows := s.Events()
	require.Len(t, rows, 2)
	assert.Equal(t, "Alpha", rows[0][0])
	assert.Equal(t, "Beta", rows[1][0])
	for _, row := range rows {
		assert.Len(t, row, 7, "latch flags must never leak into the listing")
	}
}

func TestEventStoreSaveLoadRoundTrip(t *testing.T) {
	s, disp, clk, path := setupEventStore(t)
	s.Add(event.Event{
		Name: "Dad's Birthday", DateDue: "2 April 1958", TimeDue: "09:00",
		Category: "Birthday", Notes: `say "hi", then cake`, Remaining: "12d 3h:4m",
		Stage3Fired: true,
	})
	s.Add(event.Event{Name: "MOT, car", DateDue: "14 February 2025", TimeDue: "08:30", Category: "Moto"})
	require.NoError(t, s.Save())

	s2 := reopen(t, path, clk, disp)
	assert.Equal(t, 2, s2.NumberOfEvents())

	ev := s2.Get("Dad's Birthday")
	assert.Equal(t, `say "hi", then cake`, ev.Notes)
	assert.True(t, ev.Stage3Fired)
	assert.False(t, ev.Stage2Fired)
	assert.Equal(t, "12d 3h:4m", ev.Remaining)

	// Commas and quotes in fields survive the quote-all format.
	assert.Equal(t, "Moto", s2.Get("MOT, car").Category)
}

func TestEventStoreSavesQuoteAll(t *testing.T) {
	s, _, _, path := setupEventStore(t)
	s.Add(event.Event{Name: "Xmas", DateDue: "25 December 2024", TimeDue: "08:00"})
	require.NoError(t, s.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"\"Xmas\",\"25 December 2024\",\"08:00\",\"\",\"\",\"\",\"\",\"False\",\"False\",\"False\",\"False\"\n",
		string(data))
}

func TestEventStoreLoadsLegacyRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	legacy := "\"Xmas\",\"25 December 2024\",\"08:00\",\"Holiday\",\"\",\"\",\"28d 0h:0m\"\n"
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	clk := clock.NewFake()
	clk.Set(time.Date(2024, time.November, 27, 12, 0, 0, 0, time.UTC))
	s := reopen(t, path, clk, &captureDispatcher{})

	require.Equal(t, 1, s.NumberOfEvents())
	ev := s.Get("Xmas")
	assert.False(t, ev.Stage1Fired)
	assert.False(t, ev.NowFired)
}

func TestSweepFiresStagesInSequence(t *testing.T) {
	s, disp, clk, _ := setupEventStore(t)
	ctx := context.Background()

	// Due 28 days out: inside Stage 3 (30d), outside Stage 2 (10d).
	s.Add(event.Event{Name: "Xmas", DateDue: "25 December 2024", TimeDue: "12:00", Category: "Holiday"})

	s.Sweep(ctx)
	sent := disp.all()
	require.Len(t, sent, 1)
	assert.Equal(t, event.Stage3, sent[0].Stage)
	assert.Equal(t, "Xmas", sent[0].EventName)

	// Same position, nothing new fires.
	s.Sweep(ctx)
	require.Len(t, disp.all(), 1)

	// 5 days before: Stage 2 window (and Stage 1's) entered; Stage 2
	// fires first as the wider threshold.
	clk.Set(time.Date(2024, time.December, 20, 12, 0, 0, 0, time.UTC))
	s.Sweep(ctx)
	sent = disp.all()
	require.Len(t, sent, 2)
	assert.Equal(t, event.Stage2, sent[1].Stage)

	s.Sweep(ctx)
	sent = disp.all()
	require.Len(t, sent, 3)
	assert.Equal(t, event.Stage1, sent[2].Stage)

	// Inside the final minute: Now fires, with the literal NOW text.
	clk.Set(time.Date(2024, time.December, 25, 11, 59, 30, 0, time.UTC))
	s.Sweep(ctx)
	sent = disp.all()
	require.Len(t, sent, 4)
	assert.Equal(t, event.StageNow, sent[3].Stage)
	assert.Equal(t, "NOW", sent[3].Remaining)

	// All latches set: quiet from here on.
	s.Sweep(ctx)
	require.Len(t, disp.all(), 4)
}

func TestSweepUpdatesRemaining(t *testing.T) {
	s, _, clk, _ := setupEventStore(t)
	s.Add(event.Event{Name: "Xmas", DateDue: "25 December 2024", TimeDue: "12:00"})

	s.Sweep(context.Background())
	assert.Equal(t, "28d 0h:0m", s.Get("Xmas").Remaining)

	clk.Add(90 * time.Minute)
	s.Sweep(context.Background())
	assert.Equal(t, "27d 22h:30m", s.Get("Xmas").Remaining)
}

func TestSweepPersistsFiredLatches(t *testing.T) {
	s, disp, clk, path := setupEventStore(t)
	s.Add(event.Event{Name: "Xmas", DateDue: "25 December 2024", TimeDue: "12:00"})

	s.Sweep(context.Background())
	require.Len(t, disp.all(), 1)

	// A restarted daemon must not re-fire the same stage.
	s2 := reopen(t, path, clk, disp)
	assert.True(t, s2.Get("Xmas").Stage3Fired)
	s2.Sweep(context.Background())
	assert.Len(t, disp.all(), 1)
}

func TestSweepSkipsMalformedRecord(t *testing.T) {
	s, disp, _, _ := setupEventStore(t)
	s.Add(event.Event{Name: "Bad", DateDue: "garbage", TimeDue: "12:00"})
	s.Add(event.Event{Name: "Xmas", DateDue: "25 December 2024", TimeDue: "12:00"})

	s.Sweep(context.Background())

	// The good record still updated and fired.
	sent := disp.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "Xmas", sent[0].EventName)
	assert.Equal(t, "28d 0h:0m", s.Get("Xmas").Remaining)

	// The bad record is untouched, not deleted.
	assert.Equal(t, 2, s.NumberOfEvents())
	assert.Empty(t, s.Get("Bad").Remaining)
}

func TestSweepResetsLatchesOnRollover(t *testing.T) {
	s, disp, clk, _ := setupEventStore(t)
	ctx := context.Background()

	// Anniversary with its original year; two days before the 2024
	// occurrence everything up to Stage 3 is in window.
	clk.Set(time.Date(2024, time.November, 25, 12, 0, 0, 0, time.UTC))
	s.Add(event.Event{Name: "Anniv", DateDue: "27 November 1990", TimeDue: "12:00", Category: "Anniversary"})

	s.Sweep(ctx)
	require.Len(t, disp.all(), 1)
	assert.True(t, s.Get("Anniv").Stage3Fired)

	// The day after the occurrence the resolver reprojects onto 2025:
	// the latches reset and, with ~364 days left, nothing re-fires.
	clk.Set(time.Date(2024, time.November, 28, 12, 0, 0, 0, time.UTC))
	s.Sweep(ctx)
	ev := s.Get("Anniv")
	assert.False(t, ev.Stage3Fired, "rollover must clear the latches")
	assert.Len(t, disp.all(), 1)

	// Back inside Stage 3 for the 2025 occurrence it fires again.
	clk.Set(time.Date(2025, time.November, 1, 12, 0, 0, 0, time.UTC))
	s.Sweep(ctx)
	assert.Len(t, disp.all(), 2)
}

func TestSweepFirstPassNeverResets(t *testing.T) {
	s, disp, clk, path := setupEventStore(t)
	ctx := context.Background()

	s.Add(event.Event{Name: "Xmas", DateDue: "25 December 2024", TimeDue: "12:00"})
	s.Sweep(ctx)
	require.Len(t, disp.all(), 1)

	// A fresh store loading a record with fired latches must not treat
	// the first resolved year as a rollover.
	s2 := reopen(t, path, clk, disp)
	s2.Sweep(ctx)
	assert.True(t, s2.Get("Xmas").Stage3Fired)
	assert.Len(t, disp.all(), 1)
}

func TestNextDue(t *testing.T) {
	s, _, _, _ := setupEventStore(t)

	_, _, ok := s.NextDue()
	assert.False(t, ok)

	s.Add(event.Event{Name: "Far", DateDue: "1 June 2025", TimeDue: "12:00"})
	s.Add(event.Event{Name: "Near", DateDue: "1 December 2024", TimeDue: "12:00"})

	name, remaining, ok := s.NextDue()
	require.True(t, ok)
	assert.Equal(t, "Near", name)
	assert.Equal(t, "4d 0h:0m", remaining)
}
