package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertUser registers or renames an actor's display name.
func (db *DB) UpsertUser(ctx context.Context, id, displayName string) error {
	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET display_name = excluded.display_name, updated_at = excluded.updated_at`,
		id, displayName, now, now)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// DisplayName returns the actor's display name, or "" if the actor is unknown.
func (db *DB) DisplayName(ctx context.Context, actorID string) (string, error) {
	var name string
	err := db.QueryRowContext(ctx, `SELECT display_name FROM users WHERE id = ?`, actorID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	return name, nil
}
