package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/baiirun/worklog/internal/model"
	"github.com/baiirun/worklog/internal/storage"
)

func projectNotFound(id string) error {
	return fmt.Errorf("project not found: %s (use 'worklog project list' to see available projects): %w", id, storage.ErrNotFound)
}

// CreateProject inserts a new project.
func (db *DB) CreateProject(ctx context.Context, p *model.Project) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO projects (id, name, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.OwnerID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID.
func (db *DB) GetProject(ctx context.Context, id string) (*model.Project, error) {
	p := &model.Project{}
	err := db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, created_at, updated_at FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, projectNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// ListProjects returns all projects ordered by name.
func (db *DB) ListProjects(ctx context.Context) ([]model.Project, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, owner_id, created_at, updated_at FROM projects ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ListChildren returns the sub-tasks of a main task, oldest first.
func (db *DB) ListChildren(ctx context.Context, parentID string) ([]model.WorkItem, error) {
	return db.queryItems(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE parent_id = ?
		ORDER BY created_at ASC, id ASC`, parentID)
}

// ListMainTasks returns the top-level items of a project, oldest first.
func (db *DB) ListMainTasks(ctx context.Context, projectID string) ([]model.WorkItem, error) {
	return db.queryItems(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE project_id = ? AND parent_id IS NULL
		ORDER BY created_at ASC, id ASC`, projectID)
}

// ListByAssignee returns every item the actor is assigned to.
func (db *DB) ListByAssignee(ctx context.Context, actorID string) ([]model.WorkItem, error) {
	return db.queryItems(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE id IN (SELECT item_id FROM item_assignees WHERE actor_id = ?)
		ORDER BY due_date IS NULL, due_date ASC, created_at ASC`, actorID)
}

// queryItems is a helper to scan item rows and attach assignees.
// Rows are fully drained before the assignee query runs.
func (db *DB) queryItems(ctx context.Context, query string, args ...any) ([]model.WorkItem, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}

	var items []model.WorkItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	assignees, err := db.listAssignees(ctx, itemAssignees, ids)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Assignees = assignees[items[i].ID]
	}
	return items, nil
}
