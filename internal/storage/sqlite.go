package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"counselor-assistant/internal/logger"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps interactions in an embedded database. Unlike CSVStore,
// appends and feedback updates are single statements, so concurrent
// processes do not lose each other's writes.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &PersistenceError{Op: "open", Path: path, Err: err}
	}
	// one writer at a time avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &PersistenceError{Op: "ping", Path: path, Err: err}
	}
	s := &SQLiteStore{db: db, path: path}
	if err := s.runMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Exists is always true once migrations ran.
func (s *SQLiteStore) Exists(ctx context.Context) (bool, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return false, &PersistenceError{Op: "ping", Path: s.path, Err: err}
	}
	return true, nil
}

func (s *SQLiteStore) Load(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, "user", challenge, suggestions, feedback FROM interactions ORDER BY seq`)
	if err != nil {
		return nil, &PersistenceError{Op: "query", Path: s.path, Err: err}
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var suggestions, feedback string
		if err := rows.Scan(&rec.Timestamp, &rec.User, &rec.Challenge, &suggestions, &feedback); err != nil {
			return nil, &PersistenceError{Op: "scan", Path: s.path, Err: err}
		}
		rec.Suggestions = DecodeSuggestions(suggestions)
		rec.Feedback = Rating(feedback)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "query", Path: s.path, Err: err}
	}
	return records, nil
}

func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (timestamp, "user", challenge, suggestions, feedback) VALUES (?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.User, rec.Challenge, EncodeSuggestions(rec.Suggestions), string(rec.Feedback))
	if err != nil {
		return &PersistenceError{Op: "insert", Path: s.path, Err: err}
	}
	return nil
}

func (s *SQLiteStore) SetFeedback(ctx context.Context, timestamp string, feedback Rating) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE interactions SET feedback = ? WHERE timestamp = ?`, string(feedback), timestamp)
	if err != nil {
		return 0, &PersistenceError{Op: "update", Path: s.path, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &PersistenceError{Op: "update", Path: s.path, Err: err}
	}
	return int(n), nil
}

type migration struct {
	version int
	name    string
	stmt    string
}

var migrations = []migration{
	{version: 1, name: "interactions", stmt: `
		CREATE TABLE IF NOT EXISTS interactions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL UNIQUE,
			"user" TEXT NOT NULL DEFAULT '',
			challenge TEXT NOT NULL DEFAULT '',
			suggestions TEXT NOT NULL DEFAULT '',
			feedback TEXT NOT NULL DEFAULT ''
		)`},
}

func (s *SQLiteStore) runMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`); err != nil {
		return &PersistenceError{Op: "migrate", Path: s.path, Err: err}
	}

	var current int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return &PersistenceError{Op: "migrate", Path: s.path, Err: err}
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		logger.Log.Infow("applying migration", "version", m.version, "name", m.name)
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return &PersistenceError{Op: "migrate", Path: s.path, Err: err}
		}
		if _, err := tx.ExecContext(ctx, m.stmt); err != nil {
			_ = tx.Rollback()
			return &PersistenceError{Op: "migrate", Path: s.path, Err: fmt.Errorf("migration %d: %w", m.version, err)}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
			_ = tx.Rollback()
			return &PersistenceError{Op: "migrate", Path: s.path, Err: err}
		}
		if err := tx.Commit(); err != nil {
			return &PersistenceError{Op: "migrate", Path: s.path, Err: err}
		}
	}
	return nil
}
