package event

import (
	"fmt"
)

// Stage identifies one of the escalating reminder thresholds.
type Stage string

const (
	StageNone Stage = ""
	Stage1    Stage = "Stage 1"
	Stage2    Stage = "Stage 2"
	Stage3    Stage = "Stage 3"
	StageNow  Stage = "Now"
)

// headers are the column labels for the seven display fields, in the
// same order as the persisted row.
var headers = []string{
	"Event Name", "Date Due", "Time Due", "Category", "Recurring", "Notes", "Left",
}

// categories is the accepted category set. The empty entry is valid and
// deliberately first so selector widgets default to it.
var categories = []string{
	"", "Birthday", "Wedding Anniversary", "Anniversary", "Moto",
	"Holiday", "Appointment", "One Off Event", "Other",
}

// Headers returns the display column labels for an event row.
func Headers() []string {
	out := make([]string, len(headers))
	copy(out, headers)
	return out
}

// Categories returns the accepted event categories.
func Categories() []string {
	out := make([]string, len(categories))
	copy(out, categories)
	return out
}

// ValidCategory reports whether c is one of the accepted categories.
func ValidCategory(c string) bool {
	for _, v := range categories {
		if v == c {
			return true
		}
	}
	return false
}

// Event is a single named reminder record. The store keys records by
// Name; the four Fired flags are one-shot latches that only reset when
// the annual due date rolls over to its next occurrence.
type Event struct {
	Name      string
	DateDue   string // "D Month YYYY", e.g. "2 April 1958"
	TimeDue   string // "HH:MM" 24-hour
	Category  string
	Recurring string
	Notes     string
	Remaining string // last formatted countdown, display only

	Stage1Fired bool
	Stage2Fired bool
	Stage3Fired bool
	NowFired    bool

	// dueYear is the resolved due year observed on the previous sweep.
	// Zero means not yet swept since load. Not persisted; the row format
	// has no column for it.
	dueYear int
}

// DisplayFields returns the seven display columns in header order. The
// latch flags are never exposed here.
func (e Event) DisplayFields() []string {
	return []string{
		e.Name, e.DateDue, e.TimeDue, e.Category, e.Recurring, e.Notes, e.Remaining,
	}
}

// ResetLatches clears all four fired flags. Called by the store when
// the resolved due year advances to the next occurrence.
func (e *Event) ResetLatches() {
	e.Stage1Fired = false
	e.Stage2Fired = false
	e.Stage3Fired = false
	e.NowFired = false
}

// DueYear returns the resolved due year seen on the last sweep, or zero
// if the record has not been swept yet.
func (e *Event) DueYear() int { return e.dueYear }

// SetDueYear records the resolved due year for the next sweep's
// rollover comparison.
func (e *Event) SetDueYear(y int) { e.dueYear = y }

// Row field counts. Legacy files written before the latch columns were
// added carry only the display fields.
const (
	rowFields       = 11
	legacyRowFields = 7
)

// MarshalRow flattens the event into its persisted 11-column form.
// Booleans are serialized as "True"/"False" for compatibility with the
// existing data files.
func (e Event) MarshalRow() []string {
	return []string{
		e.Name, e.DateDue, e.TimeDue, e.Category, e.Recurring, e.Notes, e.Remaining,
		formatBool(e.Stage1Fired),
		formatBool(e.Stage2Fired),
		formatBool(e.Stage3Fired),
		formatBool(e.NowFired),
	}
}

// UnmarshalRow builds an event from a persisted row. Rows holding only
// the seven display columns load with all latches unset.
func UnmarshalRow(row []string) (Event, error) {
	if len(row) != rowFields && len(row) != legacyRowFields {
		return Event{}, fmt.Errorf("event row has %d fields, want %d or %d", len(row), legacyRowFields, rowFields)
	}

	e := Event{
		Name:      row[0],
		DateDue:   row[1],
		TimeDue:   row[2],
		Category:  row[3],
		Recurring: row[4],
		Notes:     row[5],
		Remaining: row[6],
	}
	if len(row) == rowFields {
		e.Stage1Fired = parseBool(row[7])
		e.Stage2Fired = parseBool(row[8])
		e.Stage3Fired = parseBool(row[9])
		e.NowFired = parseBool(row[10])
	}
	return e, nil
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func parseBool(s string) bool {
	return s == "True"
}
