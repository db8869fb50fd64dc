package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/baiirun/worklog/internal/model"
	"github.com/baiirun/worklog/internal/storage"
)

const attachmentColumns = `id, item_id, name, url, proof, author_id, created_at`

func scanAttachment(s rowScanner) (*model.Attachment, error) {
	a := &model.Attachment{}
	if err := s.Scan(&a.ID, &a.ItemID, &a.Name, &a.URL, &a.Proof, &a.AuthorID, &a.CreatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

// AddAttachment records an uploaded file against an item.
func (db *DB) AddAttachment(ctx context.Context, a *model.Attachment) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO attachments (id, item_id, name, url, proof, author_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ItemID, a.Name, a.URL, a.Proof, a.AuthorID, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add attachment: %w", err)
	}
	return nil
}

// GetAttachment retrieves an attachment record by ID.
func (db *DB) GetAttachment(ctx context.Context, id string) (*model.Attachment, error) {
	a, err := scanAttachment(db.QueryRowContext(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("attachment not found: %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	return a, nil
}

// ListAttachments returns an item's attachments, oldest first.
func (db *DB) ListAttachments(ctx context.Context, itemID string) ([]model.Attachment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+attachmentColumns+` FROM attachments WHERE item_id = ?
		ORDER BY created_at ASC, id ASC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// DeleteAttachment removes an attachment record. The stored file is the
// caller's concern.
func (db *DB) DeleteAttachment(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("attachment not found: %s: %w", id, storage.ErrNotFound)
	}
	return nil
}
