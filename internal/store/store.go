// Package store implements the durable event store on sqlite. All mutations
// run inside a transaction and are durable before the call returns.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Carlos-paez/formaciones/internal/event"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	location TEXT NOT NULL,
	instructor TEXT NOT NULL,
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_end_time ON events(end_time);
CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);
`

// Store persists sessions in a single sqlite database file.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens (creating if needed) the database at path and bootstraps the
// schema. Pass ":memory:" for an ephemeral store.
func Open(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	// Immediate transactions take the write lock at Begin, so concurrent
	// mutations queue on the busy timeout instead of failing mid-flight.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &StorageError{Op: "open", Err: err}
	}

	// sqlite allows a single writer; a small pool is plenty.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, &StorageError{Op: "open", Err: err}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, &StorageError{Op: "migrate", Err: err}
	}

	log.Info("event store opened", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create validates and persists a new session, returning it with the
// assigned id and creation timestamp. Field presence and HH:MM shape are
// enforced; end > start deliberately is not — the original system accepted
// inverted windows and downstream classification treats them as finished
// once now >= end.
func (s *Store) Create(ctx context.Context, location, instructor, start, end string) (*event.Session, error) {
	location = strings.TrimSpace(location)
	instructor = strings.TrimSpace(instructor)

	if location == "" {
		return nil, &ValidationError{Field: "location", Reason: "required"}
	}
	if instructor == "" {
		return nil, &ValidationError{Field: "instructor", Reason: "required"}
	}
	startClock, err := event.ParseClock(start)
	if err != nil {
		return nil, &ValidationError{Field: "startTime", Reason: err.Error()}
	}
	endClock, err := event.ParseClock(end)
	if err != nil {
		return nil, &ValidationError{Field: "endTime", Reason: err.Error()}
	}

	createdAt := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &StorageError{Op: "create", Err: err}
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO events (location, instructor, start_time, end_time, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		location, instructor, startClock.String(), endClock.String(), createdAt,
	)
	if err != nil {
		return nil, &StorageError{Op: "create", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, &StorageError{Op: "create", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return nil, &StorageError{Op: "create", Err: err}
	}

	s.log.Info("event created",
		zap.Int64("id", id),
		zap.String("location", location),
		zap.String("end_time", endClock.String()),
	)

	return &event.Session{
		ID:         id,
		Location:   location,
		Instructor: instructor,
		StartTime:  startClock,
		EndTime:    endClock,
		CreatedAt:  createdAt,
	}, nil
}

// List returns all sessions, most recently created first. An empty store
// yields an empty slice, not an error.
func (s *Store) List(ctx context.Context) ([]event.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, location, instructor, start_time, end_time, created_at
		 FROM events ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	defer rows.Close()

	sessions := []event.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, &StorageError{Op: "list", Err: err}
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	return sessions, nil
}

// GetByID fetches a single session.
func (s *Store) GetByID(ctx context.Context, id int64) (*event.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, location, instructor, start_time, end_time, created_at
		 FROM events WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}
	return sess, nil
}

// Delete removes the session with the given id and returns the deleted id.
// Existence is confirmed first so a missing id reports NotFound (with the
// currently available ids as a diagnostic) rather than a silent no-op. The
// check and the delete share one transaction, so concurrent deletes of the
// same id resolve to a single success; the loser observes NotFound. Zero
// rows removed after the check passed signals a consistency problem and is
// surfaced as a StorageError.
func (s *Store) Delete(ctx context.Context, id int64) (int64, error) {
	if id <= 0 {
		return 0, &ValidationError{Field: "id", Reason: "must be a positive integer"}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &StorageError{Op: "delete", Err: err}
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM events WHERE id = ?`, id).Scan(&existing)
	if err == sql.ErrNoRows {
		available, availErr := availableIDs(ctx, tx)
		if availErr != nil {
			s.log.Warn("could not collect available ids", zap.Error(availErr))
		}
		s.log.Info("delete of missing event",
			zap.Int64("id", id),
			zap.Int64s("available_ids", available),
		)
		return 0, &NotFoundError{ID: id, AvailableIDs: available}
	}
	if err != nil {
		return 0, &StorageError{Op: "delete", Err: err}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return 0, &StorageError{Op: "delete", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, &StorageError{Op: "delete", Err: err}
	}
	if affected == 0 {
		// The existence check passed but nothing was removed.
		return 0, &StorageError{Op: "delete", Err: fmt.Errorf("event %d found but 0 rows deleted", id)}
	}
	if err := tx.Commit(); err != nil {
		return 0, &StorageError{Op: "delete", Err: err}
	}

	s.log.Info("event deleted", zap.Int64("id", id), zap.Int64("rows_affected", affected))
	return id, nil
}

// Count returns the number of stored sessions.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, &StorageError{Op: "count", Err: err}
	}
	return n, nil
}

func availableIDs(ctx context.Context, tx *sql.Tx) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM events ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*event.Session, error) {
	var (
		sess       event.Session
		start, end string
	)
	if err := row.Scan(&sess.ID, &sess.Location, &sess.Instructor, &start, &end, &sess.CreatedAt); err != nil {
		return nil, err
	}
	startClock, err := event.ParseClock(start)
	if err != nil {
		return nil, fmt.Errorf("corrupt start_time for event %d: %w", sess.ID, err)
	}
	endClock, err := event.ParseClock(end)
	if err != nil {
		return nil, fmt.Errorf("corrupt end_time for event %d: %w", sess.ID, err)
	}
	sess.StartTime = startClock
	sess.EndTime = endClock
	return &sess, nil
}
