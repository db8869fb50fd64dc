package db

import (
	"context"
	"errors"
	"testing"

	"github.com/baiirun/worklog/internal/model"
	"github.com/baiirun/worklog/internal/storage"
)

func TestSetAssignees(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestProject(t, db, "pj-1")
	item := createTestItem(t, db, "pj-1", nil, "Task", model.StatusToDo)

	if err := db.SetAssignees(ctx, item.ID, []string{"bob", "alice"}); err != nil {
		t.Fatalf("failed to set assignees: %v", err)
	}

	got, _ := db.GetItem(ctx, item.ID)
	if len(got.Assignees) != 2 || got.Assignees[0] != "alice" {
		t.Errorf("assignees = %v, want [alice bob]", got.Assignees)
	}

	// Replacing drops previous members
	if err := db.SetAssignees(ctx, item.ID, []string{"carol"}); err != nil {
		t.Fatalf("failed to replace assignees: %v", err)
	}
	got, _ = db.GetItem(ctx, item.ID)
	if len(got.Assignees) != 1 || got.Assignees[0] != "carol" {
		t.Errorf("assignees = %v, want [carol]", got.Assignees)
	}
}

func TestSetAssignees_Empty(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestProject(t, db, "pj-1")
	item := createTestItem(t, db, "pj-1", nil, "Task", model.StatusToDo)

	_ = db.SetAssignees(ctx, item.ID, []string{"bob"})
	if err := db.SetAssignees(ctx, item.ID, nil); err != nil {
		t.Fatalf("failed to clear assignees: %v", err)
	}

	got, _ := db.GetItem(ctx, item.ID)
	if len(got.Assignees) != 0 {
		t.Errorf("expected no assignees, got %v", got.Assignees)
	}
}

func TestSetAssignees_NotFound(t *testing.T) {
	db := setupTestDB(t)

	err := db.SetAssignees(context.Background(), "missing", []string{"bob"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNormalizeActors(t *testing.T) {
	got := normalizeActors([]string{"b", " a ", "", "b"})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("normalizeActors = %v, want [a b]", got)
	}
}
