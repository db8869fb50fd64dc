package model

import "time"

type ItemKind string

const (
	KindStandard   ItemKind = "standard"
	KindCollection ItemKind = "collection"
)

// IsValid reports whether the kind is one of the known item kinds.
func (k ItemKind) IsValid() bool {
	switch k {
	case KindStandard, KindCollection:
		return true
	}
	return false
}

type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

// IsValid reports whether the status is one of the known work item statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// WorkItem is either a main task (ParentID == nil) or a sub-task.
//
// For standard main tasks the stored Status is not authoritative; the effective
// status is derived from the sub-tasks at read time.
type WorkItem struct {
	ID          string
	ProjectID   string
	ParentID    *string
	OwnerID     string
	Assignees   []string
	Kind        ItemKind
	Name        string
	Description string
	Status      Status
	DueDate     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Collection kind only.
	AmountCents  int64
	ReminderDays *int
}

// IsMainTask reports whether the item sits at the top of a project.
func (w *WorkItem) IsMainTask() bool { return w.ParentID == nil }

// IsSubTask reports whether the item has a parent main task.
func (w *WorkItem) IsSubTask() bool { return w.ParentID != nil }

// IsCollection reports whether the item is a collection main task.
func (w *WorkItem) IsCollection() bool { return w.Kind == KindCollection }

// HasDerivedStatus reports whether the stored status must be ignored in favour
// of the value computed from children.
func (w *WorkItem) HasDerivedStatus() bool {
	return w.IsMainTask() && w.Kind == KindStandard
}

// IsAssigned reports whether actorID is in the assignee set.
func (w *WorkItem) IsAssigned(actorID string) bool {
	return contains(w.Assignees, actorID)
}

// ItemUpdate carries the editable fields of a work item. Nil fields are left
// unchanged.
type ItemUpdate struct {
	Name         *string
	Description  *string
	DueDate      *time.Time
	ClearDueDate bool
	AmountCents  *int64
	ReminderDays *int
}

// Fields lists the fields the update touches, in a stable order.
func (u ItemUpdate) Fields() []Field {
	var fields []Field
	if u.Name != nil {
		fields = append(fields, FieldName)
	}
	if u.Description != nil {
		fields = append(fields, FieldDescription)
	}
	if u.DueDate != nil || u.ClearDueDate {
		fields = append(fields, FieldDueDate)
	}
	if u.AmountCents != nil || u.ReminderDays != nil {
		fields = append(fields, FieldAmount)
	}
	return fields
}

// IsEmpty reports whether the update touches nothing.
func (u ItemUpdate) IsEmpty() bool { return len(u.Fields()) == 0 }

type Project struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Attachment is a stored file linked to a work item. Proof marks completion
// evidence uploaded as part of a transition to Completed.
type Attachment struct {
	ID        string
	ItemID    string
	Name      string
	URL       string
	Proof     bool
	AuthorID  string
	CreatedAt time.Time
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
