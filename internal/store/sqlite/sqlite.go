// Package sqlite persists audit records and session history for the
// `status` CLI subcommand and operational review. Ground: the teacher's
// internal/store/sqlite.DB — single-writer WAL-mode connection, same
// queryable-interface/Tx helper shape — scaled down to the two tables
// this server actually needs. The demo OAuth AS's registrations are
// deliberately NOT persisted here: spec.md's Non-goals rule out durable
// storage of client/code/token registrations, so internal/oauthserver
// keeps those in memory only.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a pure-Go sqlite connection configured for a single writer.
type DB struct {
	db *sql.DB
	q  queryable
}

// New opens (and migrates) the sqlite database at path.
func New(ctx context.Context, path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_foreign_keys=on", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	d := &DB{db: sqlDB, q: sqlDB}
	if err := d.migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_records (
			id TEXT PRIMARY KEY,
			session_id TEXT,
			kind TEXT NOT NULL,
			subject TEXT NOT NULL,
			success INTEGER NOT NULL,
			detail TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS session_history (
			id TEXT PRIMARY KEY,
			transport TEXT NOT NULL,
			connected_at TEXT NOT NULL,
			disconnected_at TEXT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := d.q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// InsertAudit stores one audit record.
func (d *DB) InsertAudit(ctx context.Context, id, sessionID, kind, subject string, success bool, detail, createdAt string) error {
	_, err := d.q.ExecContext(ctx,
		`INSERT INTO audit_records (id, session_id, kind, subject, success, detail, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, sessionID, kind, subject, success, detail, createdAt)
	return err
}

// RecordSessionConnected stores a new session-history row.
func (d *DB) RecordSessionConnected(ctx context.Context, id, transport, connectedAt string) error {
	_, err := d.q.ExecContext(ctx,
		`INSERT INTO session_history (id, transport, connected_at) VALUES (?, ?, ?)`,
		id, transport, connectedAt)
	return err
}

// RecordSessionDisconnected stamps the disconnect time for an existing
// session-history row.
func (d *DB) RecordSessionDisconnected(ctx context.Context, id, disconnectedAt string) error {
	_, err := d.q.ExecContext(ctx,
		`UPDATE session_history SET disconnected_at = ? WHERE id = ?`,
		disconnectedAt, id)
	return err
}

// CountSessions returns the total number of sessions ever recorded, for
// the `status` subcommand.
func (d *DB) CountSessions(ctx context.Context) (int, error) {
	var n int
	err := d.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_history`).Scan(&n)
	return n, err
}

// Ping verifies the connection is alive.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.db.Close()
}
