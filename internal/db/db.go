// Package db provides SQLite persistence for the worklog engine.
//
// The database is stored at ~/.worklog/worklog.db by default.
// Use Open() to connect and Init() to create the schema. *DB satisfies
// storage.Store, storage.EventLog and storage.NameResolver.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/baiirun/worklog/internal/storage"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS items (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	parent_id TEXT REFERENCES items(id),
	owner_id TEXT NOT NULL,
	kind TEXT NOT NULL DEFAULT 'standard',
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'To Do',
	due_date DATETIME,
	amount_cents INTEGER NOT NULL DEFAULT 0,
	reminder_days INTEGER,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS item_assignees (
	item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	actor_id TEXT NOT NULL,
	PRIMARY KEY (item_id, actor_id)
);

CREATE TABLE IF NOT EXISTS issues (
	id TEXT PRIMARY KEY,
	item_id TEXT NOT NULL REFERENCES items(id),
	owner_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	severity TEXT NOT NULL DEFAULT 'Normal',
	status TEXT NOT NULL DEFAULT 'Open',
	due_date DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS issue_assignees (
	issue_id TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	actor_id TEXT NOT NULL,
	PRIMARY KEY (issue_id, actor_id)
);

CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	item_id TEXT NOT NULL REFERENCES items(id),
	kind TEXT NOT NULL,
	author_id TEXT NOT NULL,
	author_name TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS attachments (
	id TEXT PRIMARY KEY,
	item_id TEXT NOT NULL REFERENCES items(id),
	name TEXT NOT NULL,
	url TEXT NOT NULL,
	proof INTEGER NOT NULL DEFAULT 0,
	author_id TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_items_project ON items(project_id);
CREATE INDEX IF NOT EXISTS idx_items_parent ON items(parent_id);
CREATE INDEX IF NOT EXISTS idx_item_assignees_actor ON item_assignees(actor_id);
CREATE INDEX IF NOT EXISTS idx_issues_item ON issues(item_id);
CREATE INDEX IF NOT EXISTS idx_issues_status ON issues(status);
CREATE INDEX IF NOT EXISTS idx_events_item ON events(item_id);
CREATE INDEX IF NOT EXISTS idx_attachments_item ON attachments(item_id);
`

// DB wraps a SQL database connection with work-item operations.
type DB struct {
	*sql.DB
}

var (
	_ storage.Store        = (*DB)(nil)
	_ storage.EventLog     = (*DB)(nil)
	_ storage.NameResolver = (*DB)(nil)
)

// DefaultPath returns the default database path (~/.worklog/worklog.db)
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".worklog", "worklog.db"), nil
}

// Open opens or creates the database at the given path
func Open(path string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY under
	// the engine's concurrent read fan-out. Callers must not nest queries
	// while holding rows open.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return &DB{db}, nil
}

// Init creates the schema.
func (db *DB) Init() error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction, committing on nil and rolling back on error.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
