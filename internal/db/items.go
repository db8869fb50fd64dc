package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/baiirun/worklog/internal/model"
	"github.com/baiirun/worklog/internal/storage"
)

const itemColumns = `id, project_id, parent_id, owner_id, kind, name, description, status,
	due_date, amount_cents, reminder_days, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(s rowScanner) (*model.WorkItem, error) {
	item := &model.WorkItem{}
	var parentID sql.NullString
	var dueDate sql.NullTime
	var reminder sql.NullInt64
	err := s.Scan(
		&item.ID, &item.ProjectID, &parentID, &item.OwnerID, &item.Kind, &item.Name, &item.Description,
		&item.Status, &dueDate, &item.AmountCents, &reminder, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		item.ParentID = &parentID.String
	}
	if dueDate.Valid {
		item.DueDate = &dueDate.Time
	}
	if reminder.Valid {
		days := int(reminder.Int64)
		item.ReminderDays = &days
	}
	return item, nil
}

func itemNotFound(id string) error {
	return fmt.Errorf("item not found: %s: %w", id, storage.ErrNotFound)
}

// CreateItem inserts a new work item and its assignees.
func (db *DB) CreateItem(ctx context.Context, item *model.WorkItem) error {
	if !item.Kind.IsValid() {
		return fmt.Errorf("invalid item kind: %s", item.Kind)
	}
	if !item.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", item.Status)
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE id = ?`, item.ProjectID).Scan(&count); err != nil {
			return fmt.Errorf("failed to check project: %w", err)
		}
		if count == 0 {
			return projectNotFound(item.ProjectID)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO items (id, project_id, parent_id, owner_id, kind, name, description, status,
				due_date, amount_cents, reminder_days, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.ProjectID, item.ParentID, item.OwnerID, item.Kind, item.Name, item.Description,
			item.Status, item.DueDate, item.AmountCents, item.ReminderDays, item.CreatedAt, item.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create item: %w", err)
		}
		return replaceAssignees(ctx, tx, itemAssignees, item.ID, item.Assignees)
	})
}

// GetItem retrieves a work item by ID, including its assignees.
// The stored status is returned as-is; derivation happens in the engine.
func (db *DB) GetItem(ctx context.Context, id string) (*model.WorkItem, error) {
	row := db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, itemNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	assignees, err := db.listAssignees(ctx, itemAssignees, []string{id})
	if err != nil {
		return nil, err
	}
	item.Assignees = assignees[id]
	return item, nil
}

// UpdateItem applies the non-nil fields of u.
func (db *DB) UpdateItem(ctx context.Context, id string, u model.ItemUpdate) error {
	var sets []string
	var args []any
	if u.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *u.Name)
	}
	if u.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *u.Description)
	}
	if u.ClearDueDate {
		sets = append(sets, "due_date = NULL")
	} else if u.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, *u.DueDate)
	}
	if u.AmountCents != nil {
		sets = append(sets, "amount_cents = ?")
		args = append(args, *u.AmountCents)
	}
	if u.ReminderDays != nil {
		sets = append(sets, "reminder_days = ?")
		args = append(args, *u.ReminderDays)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now(), id)

	result, err := db.ExecContext(ctx, `UPDATE items SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return itemNotFound(id)
	}
	return nil
}

// SetItemStatus changes an item's status only if it still equals from.
// A mismatch returns storage.ErrConflict so a lost race is observable.
func (db *DB) SetItemStatus(ctx context.Context, id string, from, to model.Status) error {
	if !to.IsValid() {
		return fmt.Errorf("invalid status: %s", to)
	}

	result, err := db.ExecContext(ctx, `
		UPDATE items SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, time.Now(), id, from)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return db.missOrConflict(ctx, "items", id, itemNotFound)
	}
	return nil
}

// SetAssignees replaces an item's assignee set.
func (db *DB) SetAssignees(ctx context.Context, id string, assignees []string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `UPDATE items SET updated_at = ? WHERE id = ?`, time.Now(), id)
		if err != nil {
			return fmt.Errorf("failed to touch item: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return itemNotFound(id)
		}
		return replaceAssignees(ctx, tx, itemAssignees, id, assignees)
	})
}

// DeleteTree removes an item, its sub-tasks, and the issues, events and
// attachment records of each, in one transaction. Either the whole tree goes
// or nothing does.
func (db *DB) DeleteTree(ctx context.Context, id string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE id = ?`, id).Scan(&count); err != nil {
			return fmt.Errorf("failed to check item: %w", err)
		}
		if count == 0 {
			return itemNotFound(id)
		}

		ids, err := childIDs(ctx, tx, id)
		if err != nil {
			return err
		}
		// Children first; the parent_id foreign key rejects orphans.
		ids = append(ids, id)

		steps := []struct {
			what  string
			query string
		}{
			{"events", `DELETE FROM events WHERE item_id = ?`},
			{"attachments", `DELETE FROM attachments WHERE item_id = ?`},
			{"issues", `DELETE FROM issues WHERE item_id = ?`},
			{"item", `DELETE FROM items WHERE id = ?`},
		}
		for _, itemID := range ids {
			for _, step := range steps {
				if _, err := tx.ExecContext(ctx, step.query, itemID); err != nil {
					return fmt.Errorf("failed to delete %s of %s: %w", step.what, itemID, err)
				}
			}
		}
		return nil
	})
}

func childIDs(ctx context.Context, tx *sql.Tx, parentID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM items WHERE parent_id = ? ORDER BY id`, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// missOrConflict distinguishes a missing row from a failed compare-and-set.
func (db *DB) missOrConflict(ctx context.Context, table, id string, notFound func(string) error) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id).Scan(&count); err != nil {
		return fmt.Errorf("failed to check %s: %w", table, err)
	}
	if count == 0 {
		return notFound(id)
	}
	return fmt.Errorf("%s %s changed since it was read: %w", strings.TrimSuffix(table, "s"), id, storage.ErrConflict)
}
