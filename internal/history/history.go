package history

import (
	"context"
	"time"

	"klockd/internal/event"
	"klockd/internal/notify"
)

// Store is the persistent record of every reminder the daemon has
// dispatched, so the CLI can show what fired while nobody was looking.
type Store interface {
	Init(ctx context.Context) error
	SaveNotification(ctx context.Context, n notify.Notification) (int64, error)
	ListNotifications(ctx context.Context, start, end time.Time, stages ...event.Stage) ([]notify.Notification, error)
	Close() error
}

// Recorder adapts a Store into a notify.Dispatcher.
type Recorder struct {
	store Store
}

func NewRecorder(s Store) *Recorder {
	return &Recorder{store: s}
}

func (r *Recorder) Dispatch(ctx context.Context, n notify.Notification) error {
	_, err := r.store.SaveNotification(ctx, n)
	return err
}
