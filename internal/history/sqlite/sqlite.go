package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"klockd/internal/event"
	"klockd/internal/history"
	"klockd/internal/notify"
)

// SQLiteStore keeps the notification history in a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

func NewSQLiteStore(dbPath string) history.Store {
	return &SQLiteStore{dbPath: dbPath}
}

const createNotificationsTableSQL = `
CREATE TABLE IF NOT EXISTS notifications (
	id TEXT PRIMARY KEY,
	event_name TEXT NOT NULL,
	stage TEXT NOT NULL,
	remaining TEXT,
	colour TEXT,
	sent_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_sent_at ON notifications (sent_at);
CREATE INDEX IF NOT EXISTS idx_notifications_stage ON notifications (stage);
`

func (s *SQLiteStore) Init(ctx context.Context) error {
	dir := filepath.Dir(s.dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create db directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite3", s.dbPath+"?_journal=WAL&_timeout=5000&_fk=true")
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	s.db = db

	// SQLite behaves best with a single writer connection.
	s.db.SetMaxOpenConns(1)
	s.db.SetMaxIdleConns(1)
	s.db.SetConnMaxLifetime(time.Minute * 5)

	if err := s.db.PingContext(ctx); err != nil {
		s.db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, createNotificationsTableSQL); err != nil {
		s.db.Close()
		return fmt.Errorf("failed to create notifications table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveNotification(ctx context.Context, n notify.Notification) (int64, error) {
	query := `INSERT INTO notifications (id, event_name, stage, remaining, colour, sent_at)
	          VALUES (?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query,
		n.ID, n.EventName, string(n.Stage), n.Remaining, n.Colour, n.SentAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert notification: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

func (s *SQLiteStore) ListNotifications(ctx context.Context, start, end time.Time, stages ...event.Stage) ([]notify.Notification, error) {
	query := `SELECT id, event_name, stage, remaining, colour, sent_at
	          FROM notifications
	          WHERE sent_at >= ? AND sent_at <= ?`
	args := []interface{}{start, end}

	if len(stages) > 0 {
		placeholders := strings.Repeat("?,", len(stages)-1) + "?"
		query += fmt.Sprintf(" AND stage IN (%s)", placeholders)
		for _, st := range stages {
			args = append(args, string(st))
		}
	}

	query += " ORDER BY sent_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []notify.Notification
	for rows.Next() {
		var n notify.Notification
		var stage string
		var remaining, colour sql.NullString

		if err := rows.Scan(&n.ID, &n.EventName, &stage, &remaining, &colour, &n.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		n.Stage = event.Stage(stage)
		n.Remaining = remaining.String
		n.Colour = colour.String
		n.Title = "Event Reminder"
		notifications = append(notifications, n)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}

	return notifications, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
