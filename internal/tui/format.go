package tui

import (
	"fmt"
	"strings"

	"github.com/baiirun/worklog/internal/model"
)

// Summary renders one event as a single human-readable line, without the
// author or timestamp.
func Summary(e model.TimelineEvent) string {
	d := e.Detail
	switch e.Kind {
	case model.EventItemCreated:
		return fmt.Sprintf("created %q", str(d["name"]))
	case model.EventItemUpdated:
		return "updated " + strings.Join(list(d["fields"]), ", ")
	case model.EventStatusChanged:
		s := fmt.Sprintf("status %s → %s", str(d["oldStatus"]), str(d["newStatus"]))
		if auto, _ := d["automatic"].(bool); auto {
			s += " (automatic: " + str(d["note"]) + ")"
		}
		if url := str(d["proofUrl"]); url != "" {
			s += " with proof " + url
		}
		return s
	case model.EventAssignmentChanged:
		var parts []string
		for _, id := range list(d["added"]) {
			parts = append(parts, "+"+id)
		}
		for _, id := range list(d["removed"]) {
			parts = append(parts, "-"+id)
		}
		return "assignees " + strings.Join(parts, " ")
	case model.EventIssueCreated:
		return fmt.Sprintf("raised issue %q (%s)", str(d["title"]), str(d["severity"]))
	case model.EventIssueStatusChanged:
		return fmt.Sprintf("issue %q %s → %s", str(d["title"]), str(d["oldStatus"]), str(d["newStatus"]))
	case model.EventIssueDeleted:
		return fmt.Sprintf("deleted issue %q", str(d["title"]))
	case model.EventAttachmentAdded:
		return "attached " + str(d["name"])
	case model.EventAttachmentDeleted:
		return "removed attachment " + str(d["name"])
	}
	return strings.ToLower(string(e.Kind))
}

// GroupSummary is the collapsed line for a sub-task group.
func GroupSummary(g *model.EventGroup) string {
	noun := "events"
	if len(g.Events) == 1 {
		noun = "event"
	}
	return fmt.Sprintf("%d %s on sub-task %q", len(g.Events), noun, g.ItemName)
}

func str(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// list accepts []string from fresh events and []any from decoded ones.
func list(v any) []string {
	switch xs := v.(type) {
	case []string:
		return xs
	case []any:
		out := make([]string, 0, len(xs))
		for _, x := range xs {
			out = append(out, str(x))
		}
		return out
	}
	return nil
}
