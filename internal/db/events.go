package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/baiirun/worklog/internal/model"
)

// AppendEvent writes one immutable event. Events are never updated.
func (db *DB) AppendEvent(ctx context.Context, e *model.TimelineEvent) error {
	if !e.Kind.IsValid() {
		return fmt.Errorf("invalid event kind: %s", e.Kind)
	}

	detail := "{}"
	if len(e.Detail) > 0 {
		b, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("failed to marshal event detail: %w", err)
		}
		detail = string(b)
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO events (id, item_id, kind, author_id, author_name, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ItemID, e.Kind, e.AuthorID, e.AuthorName, detail, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ListEvents returns an item's events in insertion order.
func (db *DB) ListEvents(ctx context.Context, itemID string) ([]model.TimelineEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, item_id, kind, author_id, author_name, detail, created_at
		FROM events WHERE item_id = ?
		ORDER BY rowid ASC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.TimelineEvent
	for rows.Next() {
		var e model.TimelineEvent
		var detail string
		if err := rows.Scan(&e.ID, &e.ItemID, &e.Kind, &e.AuthorID, &e.AuthorName, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if detail != "" && detail != "{}" {
			if err := json.Unmarshal([]byte(detail), &e.Detail); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event detail: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
