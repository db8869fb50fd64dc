package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/baiirun/worklog/internal/model"
	"github.com/baiirun/worklog/internal/storage"
)

func TestProjects(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	createTestProject(t, db, "pj-b")
	createTestProject(t, db, "pj-a")

	projects, err := db.ListProjects(ctx)
	if err != nil {
		t.Fatalf("failed to list projects: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(projects))
	}
	if projects[0].ID != "pj-a" {
		t.Errorf("expected projects ordered by name, got %q first", projects[0].ID)
	}

	got, err := db.GetProject(ctx, "pj-b")
	if err != nil {
		t.Fatalf("failed to get project: %v", err)
	}
	if got.OwnerID != "owner" {
		t.Errorf("owner = %q, want %q", got.OwnerID, "owner")
	}

	if _, err := db.GetProject(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListChildren(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestProject(t, db, "pj-1")

	main := createTestItem(t, db, "pj-1", nil, "Main", model.StatusToDo)
	other := createTestItem(t, db, "pj-1", nil, "Other", model.StatusToDo)
	createTestItem(t, db, "pj-1", &main.ID, "A", model.StatusCompleted)
	createTestItem(t, db, "pj-1", &main.ID, "B", model.StatusInProgress)
	createTestItem(t, db, "pj-1", &other.ID, "C", model.StatusToDo)

	children, err := db.ListChildren(ctx, main.ID)
	if err != nil {
		t.Fatalf("failed to list children: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
	for _, c := range children {
		if c.ParentID == nil || *c.ParentID != main.ID {
			t.Errorf("child %s has parent %v", c.ID, c.ParentID)
		}
	}

	empty, err := db.ListChildren(ctx, "missing")
	if err != nil {
		t.Fatalf("failed to list children of missing item: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no children, got %d", len(empty))
	}
}

func TestListMainTasks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestProject(t, db, "pj-1")
	createTestProject(t, db, "pj-2")

	main := createTestItem(t, db, "pj-1", nil, "Main", model.StatusToDo)
	createTestItem(t, db, "pj-1", &main.ID, "Sub", model.StatusToDo)
	createTestItem(t, db, "pj-2", nil, "Elsewhere", model.StatusToDo)

	tasks, err := db.ListMainTasks(ctx, "pj-1")
	if err != nil {
		t.Fatalf("failed to list main tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != main.ID {
		t.Errorf("expected only %s, got %+v", main.ID, tasks)
	}
}

func TestListByAssignee(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestProject(t, db, "pj-1")

	main := createTestItem(t, db, "pj-1", nil, "Main", model.StatusToDo)
	later := time.Now().Add(48 * time.Hour)
	sooner := time.Now().Add(24 * time.Hour)

	a := &model.WorkItem{ID: model.NewItemID(true), ProjectID: "pj-1", ParentID: &main.ID, OwnerID: "owner",
		Assignees: []string{"bob"}, Kind: model.KindStandard, Name: "Later", Status: model.StatusToDo,
		DueDate: &later, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	b := &model.WorkItem{ID: model.NewItemID(true), ProjectID: "pj-1", ParentID: &main.ID, OwnerID: "owner",
		Assignees: []string{"bob", "carol"}, Kind: model.KindStandard, Name: "Sooner", Status: model.StatusToDo,
		DueDate: &sooner, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	for _, it := range []*model.WorkItem{a, b} {
		if err := db.CreateItem(ctx, it); err != nil {
			t.Fatalf("failed to create item: %v", err)
		}
	}

	items, err := db.ListByAssignee(ctx, "bob")
	if err != nil {
		t.Fatalf("failed to list by assignee: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Name != "Sooner" {
		t.Errorf("expected earliest due first, got %q", items[0].Name)
	}

	items, _ = db.ListByAssignee(ctx, "carol")
	if len(items) != 1 || items[0].ID != b.ID {
		t.Errorf("carol should see only %s", b.ID)
	}
	if len(items[0].Assignees) != 2 {
		t.Errorf("assignees = %v, want 2 entries", items[0].Assignees)
	}
}
