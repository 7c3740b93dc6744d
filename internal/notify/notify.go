package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"klockd/internal/event"
)

// Notification is a single fired reminder. The store decides when one
// fires; dispatchers decide how it is surfaced. Display failures are
// never reported back to the store.
type Notification struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	EventName string      `json:"event_name"`
	Remaining string      `json:"remaining"` // formatted countdown, or "NOW"
	Stage     event.Stage `json:"stage"`
	Colour    string      `json:"colour"`
	SentAt    time.Time   `json:"sent_at"`
}

// New builds a Notification for the given event and stage. The Now
// stage carries the literal "NOW" instead of a countdown.
func New(eventName, remaining string, stage event.Stage, colour string, at time.Time) Notification {
	if stage == event.StageNow {
		remaining = "NOW"
	}
	return Notification{
		ID:        uuid.New().String(),
		Title:     "Event Reminder",
		EventName: eventName,
		Remaining: remaining,
		Stage:     stage,
		Colour:    colour,
		SentAt:    at,
	}
}

// Text renders the toast body.
func (n Notification) Text() string {
	if n.Stage == event.StageNow {
		return n.EventName + "  NOW"
	}
	return n.EventName + " in " + n.Remaining
}

// Dispatcher surfaces notifications to the user. Dispatch is
// fire-and-forget from the store's point of view; an error only ends up
// in the log.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// LogDispatcher writes notifications to the structured log. It stands
// in for the desktop toast layer, which lives outside the daemon.
type LogDispatcher struct {
	log *zap.SugaredLogger
}

func NewLogDispatcher(log *zap.SugaredLogger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Dispatch(_ context.Context, n Notification) error {
	d.log.Infow("event reminder",
		"event", n.EventName,
		"stage", string(n.Stage),
		"remaining", n.Remaining,
		"colour", n.Colour,
	)
	return nil
}

// Multi fans a notification out to several dispatchers. Every
// dispatcher is attempted; the first error is returned.
type Multi []Dispatcher

func (m Multi) Dispatch(ctx context.Context, n Notification) error {
	var first error
	for _, d := range m {
		if err := d.Dispatch(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}
