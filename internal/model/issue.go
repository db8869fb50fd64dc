package model

import "time"

type Severity string

const (
	SeverityNormal   Severity = "Normal"
	SeverityCritical Severity = "Critical"
)

func (s Severity) IsValid() bool {
	return s == SeverityNormal || s == SeverityCritical
}

type IssueStatus string

const (
	IssueOpen   IssueStatus = "Open"
	IssueClosed IssueStatus = "Closed"
)

func (s IssueStatus) IsValid() bool {
	return s == IssueOpen || s == IssueClosed
}

// Issue is a defect or blocker raised against a sub-task.
type Issue struct {
	ID          string
	ItemID      string
	OwnerID     string
	Assignees   []string
	Title       string
	Description string
	Severity    Severity
	Status      IssueStatus
	DueDate     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsAssigned reports whether actorID is in the issue's assignee set.
func (i *Issue) IsAssigned(actorID string) bool {
	return contains(i.Assignees, actorID)
}
