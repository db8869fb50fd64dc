package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/baiirun/worklog/internal/model"
	"github.com/baiirun/worklog/internal/storage"
)

const issueColumns = `id, item_id, owner_id, title, description, severity, status, due_date, created_at, updated_at`

func issueNotFound(id string) error {
	return fmt.Errorf("issue not found: %s: %w", id, storage.ErrNotFound)
}

func scanIssue(s rowScanner) (*model.Issue, error) {
	issue := &model.Issue{}
	var dueDate sql.NullTime
	err := s.Scan(&issue.ID, &issue.ItemID, &issue.OwnerID, &issue.Title, &issue.Description,
		&issue.Severity, &issue.Status, &dueDate, &issue.CreatedAt, &issue.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if dueDate.Valid {
		issue.DueDate = &dueDate.Time
	}
	return issue, nil
}

// CreateIssue inserts an issue and its assignees in one transaction.
func (db *DB) CreateIssue(ctx context.Context, issue *model.Issue) error {
	if !issue.Severity.IsValid() {
		return fmt.Errorf("invalid severity: %s", issue.Severity)
	}
	if !issue.Status.IsValid() {
		return fmt.Errorf("invalid issue status: %s", issue.Status)
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE id = ?`, issue.ItemID).Scan(&count); err != nil {
			return fmt.Errorf("failed to check item: %w", err)
		}
		if count == 0 {
			return itemNotFound(issue.ItemID)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO issues (id, item_id, owner_id, title, description, severity, status, due_date, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			issue.ID, issue.ItemID, issue.OwnerID, issue.Title, issue.Description,
			issue.Severity, issue.Status, issue.DueDate, issue.CreatedAt, issue.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert issue: %w", err)
		}
		return replaceAssignees(ctx, tx, issueAssignees, issue.ID, issue.Assignees)
	})
}

// GetIssue retrieves an issue by ID.
func (db *DB) GetIssue(ctx context.Context, id string) (*model.Issue, error) {
	issue, err := scanIssue(db.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, issueNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}

	assignees, err := db.listAssignees(ctx, issueAssignees, []string{id})
	if err != nil {
		return nil, err
	}
	issue.Assignees = assignees[id]
	return issue, nil
}

// SetIssueStatus changes an issue's status only if it still equals from.
func (db *DB) SetIssueStatus(ctx context.Context, id string, from, to model.IssueStatus) error {
	if !to.IsValid() {
		return fmt.Errorf("invalid issue status: %s", to)
	}

	result, err := db.ExecContext(ctx, `
		UPDATE issues SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, time.Now(), id, from)
	if err != nil {
		return fmt.Errorf("failed to update issue status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return db.missOrConflict(ctx, "issues", id, issueNotFound)
	}
	return nil
}

// ListIssues returns the issues raised against an item, oldest first.
func (db *DB) ListIssues(ctx context.Context, itemID string) ([]model.Issue, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+issueColumns+` FROM issues WHERE item_id = ?
		ORDER BY created_at ASC, id ASC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}

	var issues []model.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issues = append(issues, *issue)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	ids := make([]string, len(issues))
	for i := range issues {
		ids[i] = issues[i].ID
	}
	assignees, err := db.listAssignees(ctx, issueAssignees, ids)
	if err != nil {
		return nil, err
	}
	for i := range issues {
		issues[i].Assignees = assignees[issues[i].ID]
	}
	return issues, nil
}

// CountOpenIssues returns how many Open issues block the item.
func (db *DB) CountOpenIssues(ctx context.Context, itemID string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM issues WHERE item_id = ? AND status = ?`,
		itemID, model.IssueOpen).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open issues: %w", err)
	}
	return count, nil
}

// DeleteIssue removes an issue and its assignees.
func (db *DB) DeleteIssue(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM issues WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete issue: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return issueNotFound(id)
	}
	return nil
}
