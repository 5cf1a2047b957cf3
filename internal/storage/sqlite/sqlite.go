// Package sqlite is the local key-value backend used in anonymous mode.
//
// Every record lives in a single table keyed by (namespace, key) with the
// JSON-encoded record as value. Anonymous sessions always use the fixed
// namespace "local"; the identity passed to the adapter methods is ignored.
// The same database holds the device's progress event log.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"sakinah/internal/model"
	"sakinah/internal/storage"
	"sakinah/internal/telemetry"
)

const (
	Namespace = "local"

	keyTasks  = "tasks"
	keyStreak = "streak"

	// Fixed width in UTC so event times compare as text.
	eventTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

const schema = `
	CREATE TABLE IF NOT EXISTS records (
		namespace  TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (namespace, key)
	);

	CREATE TABLE IF NOT EXISTS events (
		id      INTEGER PRIMARY KEY AUTOINCREMENT,
		type    TEXT NOT NULL,
		at      TEXT NOT NULL,
		date    TEXT NOT NULL DEFAULT '',
		task_id TEXT NOT NULL DEFAULT '',
		reason  TEXT NOT NULL DEFAULT '',
		streak  INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_events_at ON events(at);
`

// Store is a SQLite-backed storage.Adapter.
type Store struct {
	db        *sql.DB
	namespace string
}

// Open creates the database file (and its directory) if needed. dbPath is
// used as given; callers expand "~".
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, namespace: Namespace}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ReadTasks(ctx context.Context, _ model.Identity) ([]model.Task, error) {
	var tasks []model.Task
	if err := s.get(ctx, keyTasks, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

func (s *Store) WriteTasks(ctx context.Context, _ model.Identity, tasks []model.Task) error {
	if tasks == nil {
		tasks = []model.Task{}
	}
	return s.put(ctx, keyTasks, tasks)
}

func (s *Store) ReadStreak(ctx context.Context, _ model.Identity) (model.StreakState, error) {
	var st model.StreakState
	if err := s.get(ctx, keyStreak, &st); err != nil {
		return model.StreakState{}, err
	}
	st.Normalize()
	return st, nil
}

func (s *Store) WriteStreak(ctx context.Context, _ model.Identity, state model.StreakState) error {
	return s.put(ctx, keyStreak, state)
}

func (s *Store) get(ctx context.Context, key string, dst any) error {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM records WHERE namespace = ? AND key = ?`,
		s.namespace, key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("query %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (namespace, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, s.namespace, key, string(b), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Append adds ev to the progress log. ev.ID is assigned by the database.
func (s *Store) Append(ctx context.Context, ev telemetry.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (type, at, date, task_id, reason, streak)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(ev.Type), ev.At.UTC().Format(eventTimeLayout),
		string(ev.Date), string(ev.TaskID), string(ev.Reason), ev.Streak)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Since returns logged events at or after since, oldest first.
func (s *Store) Since(ctx context.Context, since time.Time, types ...telemetry.EventType) ([]telemetry.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, at, date, task_id, reason, streak
		FROM events
		WHERE at >= ?
		ORDER BY id
	`, since.UTC().Format(eventTimeLayout))
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	want := make(map[telemetry.EventType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}

	events := []telemetry.Event{}
	for rows.Next() {
		var (
			ev                            telemetry.Event
			typ, at, date, taskID, reason string
		)
		if err := rows.Scan(&ev.ID, &typ, &at, &date, &taskID, &reason, &ev.Streak); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = telemetry.EventType(typ)
		if len(want) > 0 && !want[ev.Type] {
			continue
		}
		if ev.At, err = time.Parse(eventTimeLayout, at); err != nil {
			return nil, fmt.Errorf("event %d: %w", ev.ID, err)
		}
		ev.Date = model.Date(date)
		ev.TaskID = model.TaskID(taskID)
		ev.Reason = model.CardReason(reason)
		events = append(events, ev)
	}
	return events, rows.Err()
}
