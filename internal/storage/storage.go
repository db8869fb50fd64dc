// Package storage defines the collaborator contracts the work-item engine
// depends on. The SQLite implementation lives in internal/db and the file
// attachment store in internal/attachment; the engine only sees these
// interfaces so alternative backends and test doubles can be substituted.
package storage

import (
	"context"
	"errors"

	"github.com/baiirun/worklog/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned by compare-and-set writes when the stored value no
// longer matches what the caller read.
var ErrConflict = errors.New("concurrent modification")

// Store is the work-item store: per-document atomic writes, no multi-document
// transactions assumed by callers.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context) ([]model.Project, error)

	// Work items
	CreateItem(ctx context.Context, item *model.WorkItem) error
	GetItem(ctx context.Context, id string) (*model.WorkItem, error)
	UpdateItem(ctx context.Context, id string, u model.ItemUpdate) error
	// SetItemStatus writes to only if the stored status still equals from.
	SetItemStatus(ctx context.Context, id string, from, to model.Status) error
	SetAssignees(ctx context.Context, id string, assignees []string) error
	ListChildren(ctx context.Context, parentID string) ([]model.WorkItem, error)
	ListMainTasks(ctx context.Context, projectID string) ([]model.WorkItem, error)
	ListByAssignee(ctx context.Context, actorID string) ([]model.WorkItem, error)
	// DeleteTree atomically removes an item and its sub-tasks together with
	// their issues, events and attachment records.
	DeleteTree(ctx context.Context, id string) error

	// Issues
	CreateIssue(ctx context.Context, issue *model.Issue) error
	GetIssue(ctx context.Context, id string) (*model.Issue, error)
	SetIssueStatus(ctx context.Context, id string, from, to model.IssueStatus) error
	ListIssues(ctx context.Context, itemID string) ([]model.Issue, error)
	CountOpenIssues(ctx context.Context, itemID string) (int, error)
	DeleteIssue(ctx context.Context, id string) error

	// Attachments
	AddAttachment(ctx context.Context, a *model.Attachment) error
	GetAttachment(ctx context.Context, id string) (*model.Attachment, error)
	ListAttachments(ctx context.Context, itemID string) ([]model.Attachment, error)
	DeleteAttachment(ctx context.Context, id string) error
}

// EventLog is the append-only per-item history.
type EventLog interface {
	AppendEvent(ctx context.Context, e *model.TimelineEvent) error
	// ListEvents returns an item's events in storage order; callers sort.
	ListEvents(ctx context.Context, itemID string) ([]model.TimelineEvent, error)
}

// NameResolver maps an actor id to a display name. An unknown actor yields
// "" and a nil error.
type NameResolver interface {
	DisplayName(ctx context.Context, actorID string) (string, error)
}

// ProgressFunc receives the number of bytes written so far and the total.
type ProgressFunc func(written, total int64)

// AttachmentStore keeps binary content under a logical path and hands back a
// retrievable URL.
type AttachmentStore interface {
	Put(ctx context.Context, path string, content []byte, progress ProgressFunc) (string, error)
	Delete(ctx context.Context, url string) error
}
