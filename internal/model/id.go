package model

import (
	"strings"

	"github.com/google/uuid"
)

const (
	prefixProject    = "pj-"
	prefixMainTask   = "mt-"
	prefixSubTask    = "st-"
	prefixIssue      = "is-"
	prefixEvent      = "ev-"
	prefixAttachment = "at-"
)

// newID builds a prefixed, time-ordered identifier. UUIDv7 keeps ids sortable
// by creation time, which the timeline uses as a tie-breaker.
func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.Must(uuid.NewV7()).String(), "-", "")
}

func NewProjectID() string    { return newID(prefixProject) }
func NewIssueID() string      { return newID(prefixIssue) }
func NewEventID() string      { return newID(prefixEvent) }
func NewAttachmentID() string { return newID(prefixAttachment) }

// NewItemID returns an id for a main task or, when sub is true, a sub-task.
func NewItemID(sub bool) string {
	if sub {
		return newID(prefixSubTask)
	}
	return newID(prefixMainTask)
}
