package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/AnatoleLucet/sigscope/internal/recording"
	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

const schema = `
CREATE TABLE IF NOT EXISTS recordings (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    created_at  INTEGER NOT NULL,
    event_count INTEGER NOT NULL,
    first_at    INTEGER NOT NULL DEFAULT 0,
    last_at     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS events (
    recording_id TEXT NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
    seq          INTEGER NOT NULL,
    payload      TEXT NOT NULL,
    PRIMARY KEY (recording_id, seq)
);
`

// SQLiteStore keeps one row per recording and one row per event.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("store: create %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec recording.Recording) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: save %s: %w", rec.ID, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	summary := rec.Summary()
	const upsert = `
		INSERT INTO recordings (id, name, created_at, event_count, first_at, last_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			created_at = excluded.created_at,
			event_count = excluded.event_count,
			first_at = excluded.first_at,
			last_at = excluded.last_at`
	_, err = tx.ExecContext(ctx, upsert,
		summary.ID, summary.Name, summary.CreatedAt.UnixNano(), summary.EventCount,
		unixNano(summary.First), unixNano(summary.Last))
	if err != nil {
		return fmt.Errorf("store: save %s: %w", rec.ID, err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM events WHERE recording_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("store: save %s: %w", rec.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO events (recording_id, seq, payload) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: save %s: %w", rec.ID, err)
	}
	defer stmt.Close()

	for i, e := range rec.Events {
		payload, merr := json.Marshal(e)
		if merr != nil {
			err = merr
			return fmt.Errorf("store: save %s: event %d: %w", rec.ID, e.ID, err)
		}
		if _, err = stmt.ExecContext(ctx, rec.ID, i, string(payload)); err != nil {
			return fmt.Errorf("store: save %s: %w", rec.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: save %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (recording.Recording, error) {
	var (
		rec     recording.Recording
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM recordings WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return recording.Recording{}, fmt.Errorf("store: load %s: %w", id, recording.ErrNotFound)
	}
	if err != nil {
		return recording.Recording{}, fmt.Errorf("store: load %s: %w", id, err)
	}
	rec.CreatedAt = time.Unix(0, created).UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM events WHERE recording_id = ? ORDER BY seq`, id)
	if err != nil {
		return recording.Recording{}, fmt.Errorf("store: load %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return recording.Recording{}, fmt.Errorf("store: load %s: %w", id, err)
		}
		var e tracker.Event
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return recording.Recording{}, fmt.Errorf("store: load %s: %w", id, err)
		}
		rec.Events = append(rec.Events, e)
	}
	if err := rows.Err(); err != nil {
		return recording.Recording{}, fmt.Errorf("store: load %s: %w", id, err)
	}
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]recording.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at, event_count, first_at, last_at
		FROM recordings
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var summaries []recording.Summary
	for rows.Next() {
		var (
			summary              recording.Summary
			created, first, last int64
		)
		if err := rows.Scan(&summary.ID, &summary.Name, &created, &summary.EventCount, &first, &last); err != nil {
			return nil, fmt.Errorf("store: list: %w", err)
		}
		summary.CreatedAt = time.Unix(0, created).UTC()
		summary.First = fromUnixNano(first)
		summary.Last = fromUnixNano(last)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	return summaries, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("store: delete %s: %w", id, recording.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
