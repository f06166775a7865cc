// Package store handles SQLite persistence of per-chunk mastery state.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/woodshed/internal/analysis"
	"github.com/verte-zerg/woodshed/internal/mastery"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for mastery and session bookkeeping.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chunks (
			song TEXT NOT NULL,
			chunk_id TEXT NOT NULL,
			first_bar INTEGER NOT NULL,
			last_bar INTEGER NOT NULL,
			label TEXT NOT NULL,
			mastery_level INTEGER NOT NULL,
			last_practiced TEXT,
			next_review TEXT,
			PRIMARY KEY (song, chunk_id)
		);`,
		`CREATE TABLE IF NOT EXISTS chunk_history (
			song TEXT NOT NULL,
			chunk_id TEXT NOT NULL,
			practiced_at TEXT NOT NULL,
			rating INTEGER NOT NULL,
			tempo INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS meta (
			song TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (song, key)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_history_chunk ON chunk_history(song, chunk_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// LoadStates returns the persisted mastery states for a song, keyed by
// chunk id. Histories are loaded in practice order.
func (s *Store) LoadStates(ctx context.Context, songKey string) (map[string]mastery.State, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, mastery_level, last_practiced, next_review
		 FROM chunks WHERE song = ?`, songKey)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	states := map[string]mastery.State{}
	for rows.Next() {
		var st mastery.State
		var lastPracticed, nextReview sql.NullString
		if err := rows.Scan(&st.ChunkID, &st.Level, &lastPracticed, &nextReview); err != nil {
			return nil, err
		}
		if st.LastPracticed, err = parseNullTime(lastPracticed); err != nil {
			return nil, err
		}
		if st.NextReview, err = parseNullTime(nextReview); err != nil {
			return nil, err
		}
		states[st.ChunkID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for id, st := range states {
		history, err := s.loadHistory(ctx, songKey, id)
		if err != nil {
			return nil, err
		}
		st.History = history
		states[id] = st
	}
	return states, nil
}

func (s *Store) loadHistory(ctx context.Context, songKey, chunkID string) ([]mastery.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT practiced_at, rating, tempo FROM chunk_history
		 WHERE song = ? AND chunk_id = ? ORDER BY practiced_at ASC`, songKey, chunkID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var history []mastery.HistoryEntry
	for rows.Next() {
		var entry mastery.HistoryEntry
		var practicedAt string
		if err := rows.Scan(&practicedAt, &entry.Rating, &entry.Tempo); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, practicedAt)
		if err != nil {
			return nil, err
		}
		entry.Date = parsed
		history = append(history, entry)
	}
	return history, rows.Err()
}

// SaveState upserts a chunk's mastery row and appends any history
// entries newer than what is already stored.
func (s *Store) SaveState(ctx context.Context, songKey string, chunk analysis.Chunk, st mastery.State, newEntries []mastery.HistoryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chunks (song, chunk_id, first_bar, last_bar, label, mastery_level, last_practiced, next_review)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(song, chunk_id) DO UPDATE SET
			first_bar = excluded.first_bar,
			last_bar = excluded.last_bar,
			label = excluded.label,
			mastery_level = excluded.mastery_level,
			last_practiced = excluded.last_practiced,
			next_review = excluded.next_review`,
		songKey, st.ChunkID, chunk.FirstBar, chunk.LastBar, chunk.Label,
		st.Level, formatNullTime(st.LastPracticed), formatNullTime(st.NextReview))
	if err != nil {
		return err
	}

	for _, entry := range newEntries {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO chunk_history (song, chunk_id, practiced_at, rating, tempo)
			 VALUES (?, ?, ?, ?, ?)`,
			songKey, st.ChunkID, entry.Date.Format(time.RFC3339Nano), entry.Rating, entry.Tempo); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Reset deletes all mastery state and history for a song.
func (s *Store) Reset(ctx context.Context, songKey string) error {
	for _, stmt := range []string{
		`DELETE FROM chunk_history WHERE song = ?`,
		`DELETE FROM chunks WHERE song = ?`,
		`DELETE FROM meta WHERE song = ?`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt, songKey); err != nil {
			return err
		}
	}
	return nil
}

// SessionCount returns the number of sessions recorded for a song.
func (s *Store) SessionCount(ctx context.Context, songKey string) (int, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM meta WHERE song = ? AND key = 'session_count'`, songKey).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var count int
	if _, err := fmt.Sscanf(value, "%d", &count); err != nil {
		return 0, fmt.Errorf("failed to parse session count %q: %w", value, err)
	}
	return count, nil
}

// RecordSession bumps the session counter and stores its timestamp.
func (s *Store) RecordSession(ctx context.Context, songKey string, at time.Time) (int, error) {
	count, err := s.SessionCount(ctx, songKey)
	if err != nil {
		return 0, err
	}
	count++
	for key, value := range map[string]string{
		"session_count":   fmt.Sprintf("%d", count),
		"last_session_at": at.Format(time.RFC3339Nano),
	} {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO meta (song, key, value) VALUES (?, ?, ?)
			 ON CONFLICT(song, key) DO UPDATE SET value = excluded.value`,
			songKey, key, value); err != nil {
			return 0, err
		}
	}
	return count, nil
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}
