package model

import (
	"sort"
	"time"
)

type EventKind string

const (
	EventItemCreated        EventKind = "ITEM_CREATED"
	EventItemUpdated        EventKind = "ITEM_UPDATED"
	EventStatusChanged      EventKind = "STATUS_CHANGED"
	EventAssignmentChanged  EventKind = "ASSIGNMENT_CHANGED"
	EventIssueCreated       EventKind = "ISSUE_CREATED"
	EventIssueStatusChanged EventKind = "ISSUE_STATUS_CHANGED"
	EventIssueDeleted       EventKind = "ISSUE_DELETED"
	EventAttachmentAdded    EventKind = "ATTACHMENT_ADDED"
	EventAttachmentDeleted  EventKind = "ATTACHMENT_DELETED"
)

func (k EventKind) IsValid() bool {
	switch k {
	case EventItemCreated, EventItemUpdated, EventStatusChanged, EventAssignmentChanged,
		EventIssueCreated, EventIssueStatusChanged, EventIssueDeleted,
		EventAttachmentAdded, EventAttachmentDeleted:
		return true
	}
	return false
}

// SystemAuthor is the display name used when an author cannot be resolved.
const SystemAuthor = "System"

// TimelineEvent is one immutable entry in a work item's history. AuthorName is
// captured at write time so old entries survive later renames.
type TimelineEvent struct {
	ID         string
	ItemID     string
	Kind       EventKind
	AuthorID   string
	AuthorName string
	Detail     map[string]any
	CreatedAt  time.Time
}

// Before orders events chronologically. Ties fall back to the id, which is
// time-ordered, so the order is total and stable across reads.
func (e TimelineEvent) Before(other TimelineEvent) bool {
	if !e.CreatedAt.Equal(other.CreatedAt) {
		return e.CreatedAt.Before(other.CreatedAt)
	}
	return e.ID < other.ID
}

// SortEventsDesc sorts events newest first.
func SortEventsDesc(events []TimelineEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[j].Before(events[i])
	})
}

// EventGroup wraps a sub-task's full history so a renderer can show it as one
// collapsible row.
type EventGroup struct {
	ItemID   string
	ItemName string
	Events   []TimelineEvent // newest first
}

// AggregatedEvent is a read-time composite: exactly one of Event or Group is set.
type AggregatedEvent struct {
	Event *TimelineEvent
	Group *EventGroup
	At    time.Time
}

// Count returns how many timeline events the entry stands for.
func (a AggregatedEvent) Count() int {
	if a.Group != nil {
		return len(a.Group.Events)
	}
	return 1
}

// key returns a tie-breaker for entries sharing a timestamp.
func (a AggregatedEvent) key() string {
	if a.Group != nil {
		if len(a.Group.Events) > 0 {
			return a.Group.Events[0].ID
		}
		return a.Group.ItemID
	}
	return a.Event.ID
}

// SortAggregatedDesc sorts entries by representative timestamp, newest first.
func SortAggregatedDesc(entries []AggregatedEvent) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].At.Equal(entries[j].At) {
			return entries[i].At.After(entries[j].At)
		}
		return entries[i].key() > entries[j].key()
	})
}

// TaskTimeline is one main task's aggregated history within a project view.
type TaskTimeline struct {
	Task     WorkItem
	Entries  []AggregatedEvent
	LatestAt time.Time
}
