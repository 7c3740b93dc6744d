package event

import "time"

// nowWindow is the final-warning window: an event within a minute of
// its due instant is "now".
const nowWindow = 60 * time.Second

// Thresholds holds the advance-warning windows for the three stages.
// Stage3 is the widest (first to fire), Stage1 the narrowest.
type Thresholds struct {
	Stage1 time.Duration
	Stage2 time.Duration
	Stage3 time.Duration
}

// DefaultThresholds mirrors the stock configuration: 5, 10 and 30 days.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Stage1: 5 * 24 * time.Hour,
		Stage2: 10 * 24 * time.Hour,
		Stage3: 30 * 24 * time.Hour,
	}
}

// NextStage is the pure latch transition: given the seconds left until
// the due instant and the record's current flags, it reports which
// stage fires this sweep, if any. Checks run in priority order
// Now > Stage 3 > Stage 2 > Stage 1 and the first match wins, so a
// record qualifying for several thresholds at once produces exactly one
// notification. NextStage does not mutate the event; callers latch the
// returned stage with MarkFired.
func NextStage(secondsLeft int64, th Thresholds, e Event) (Stage, bool) {
	left := time.Duration(secondsLeft) * time.Second

	switch {
	case left <= nowWindow && !e.NowFired:
		return StageNow, true
	case left <= th.Stage3 && !e.Stage3Fired:
		return Stage3, true
	case left <= th.Stage2 && !e.Stage2Fired:
		return Stage2, true
	case left <= th.Stage1 && !e.Stage1Fired:
		return Stage1, true
	}
	return StageNone, false
}

// MarkFired sets the latch for the given stage. Latches are monotonic;
// they only clear via ResetLatches on annual rollover.
func (e *Event) MarkFired(s Stage) {
	switch s {
	case Stage1:
		e.Stage1Fired = true
	case Stage2:
		e.Stage2Fired = true
	case Stage3:
		e.Stage3Fired = true
	case StageNow:
		e.NowFired = true
	}
}
