package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/baiirun/worklog/internal/model"
	tea "github.com/charmbracelet/bubbletea"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func ev(id, item string, kind model.EventKind, minutes int, detail map[string]any) model.TimelineEvent {
	return model.TimelineEvent{
		ID:         id,
		ItemID:     item,
		Kind:       kind,
		AuthorID:   "olivia",
		AuthorName: "Olivia",
		Detail:     detail,
		CreatedAt:  base.Add(time.Duration(minutes) * time.Minute),
	}
}

// fakeSource serves a main task with one own event and one sub-task group.
type fakeSource struct {
	err error
}

func (f fakeSource) entries() []model.AggregatedEvent {
	own := ev("e1", "mt-1", model.EventItemCreated, 0, map[string]any{"name": "Foundations"})
	group := &model.EventGroup{
		ItemID:   "st-1",
		ItemName: "Pour slab",
		Events: []model.TimelineEvent{
			ev("e3", "st-1", model.EventStatusChanged, 5, map[string]any{"oldStatus": "To Do", "newStatus": "In Progress"}),
			ev("e2", "st-1", model.EventItemCreated, 2, map[string]any{"name": "Pour slab"}),
		},
	}
	return []model.AggregatedEvent{
		{Group: group, At: group.Events[0].CreatedAt},
		{Event: &own, At: own.CreatedAt},
	}
}

func (f fakeSource) AggregateForWorkItem(ctx context.Context, id string) ([]model.AggregatedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries(), nil
}

func (f fakeSource) AggregateForProject(ctx context.Context, id string) ([]model.TaskTimeline, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []model.TaskTimeline{
		{
			Task:     model.WorkItem{ID: "mt-1", Name: "Foundations", Kind: model.KindStandard, Status: model.StatusInProgress},
			Entries:  f.entries(),
			LatestAt: base.Add(5 * time.Minute),
		},
		{
			Task:     model.WorkItem{ID: "mt-2", Name: "Permits", Kind: model.KindStandard, Status: model.StatusToDo},
			LatestAt: base,
		},
	}, nil
}

func loaded(t *testing.T, m Model) Model {
	t.Helper()
	msg := m.Init()()
	updated, _ := m.Update(msg)
	return updated.(Model)
}

func key(m Model, k string) Model {
	var msg tea.KeyMsg
	switch k {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	updated, _ := m.Update(msg)
	return updated.(Model)
}

func kinds(m Model) []rowKind {
	out := make([]rowKind, len(m.rows))
	for i, r := range m.rows {
		out[i] = r.kind
	}
	return out
}

func TestModel_GroupsStartCollapsed(t *testing.T) {
	m := loaded(t, New(fakeSource{}, Target{MainTaskID: "mt-1"}))

	if len(m.rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(m.rows))
	}
	if m.rows[0].kind != rowGroup || m.rows[1].kind != rowEvent {
		t.Fatalf("unexpected row kinds: %v", kinds(m))
	}
}

func TestModel_ToggleGroup(t *testing.T) {
	m := loaded(t, New(fakeSource{}, Target{MainTaskID: "mt-1"}))

	m = key(m, "enter")
	if len(m.rows) != 4 {
		t.Fatalf("expected 4 rows after expand, got %d", len(m.rows))
	}
	if m.rows[1].event.ID != "e3" || m.rows[1].depth != 1 {
		t.Errorf("expected newest sub-task event nested first, got %+v", m.rows[1])
	}
	if m.cursor != 0 {
		t.Errorf("cursor should stay on the group, got %d", m.cursor)
	}

	m = key(m, "h")
	if len(m.rows) != 2 {
		t.Errorf("expected collapse back to 2 rows, got %d", len(m.rows))
	}

	m = key(m, "l")
	m = key(m, "l")
	if len(m.rows) != 4 {
		t.Errorf("l on an open group should keep it open, got %d rows", len(m.rows))
	}
}

func TestModel_Navigation(t *testing.T) {
	m := loaded(t, New(fakeSource{}, Target{MainTaskID: "mt-1"}))

	m = key(m, "k")
	if m.cursor != 0 {
		t.Errorf("cursor moved above top: %d", m.cursor)
	}
	m = key(m, "j")
	m = key(m, "j")
	if m.cursor != 1 {
		t.Errorf("cursor should stop at last row, got %d", m.cursor)
	}
	m = key(m, "g")
	if m.cursor != 0 {
		t.Errorf("g should jump to top, got %d", m.cursor)
	}
	m = key(m, "G")
	if m.cursor != 1 {
		t.Errorf("G should jump to bottom, got %d", m.cursor)
	}
}

func TestModel_ProjectTree(t *testing.T) {
	m := loaded(t, New(fakeSource{}, Target{ProjectID: "p-1"}))

	want := []rowKind{rowTask, rowGroup, rowEvent, rowTask}
	got := kinds(m)
	if len(got) != len(want) {
		t.Fatalf("rows = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rows = %v, want %v", got, want)
		}
	}

	// Collapsing the first task hides its entries.
	m = key(m, "enter")
	if len(m.rows) != 2 {
		t.Errorf("expected 2 task rows after collapse, got %d", len(m.rows))
	}

	m = key(m, "e")
	if len(m.rows) != 6 {
		t.Errorf("expand all: expected 6 rows, got %d", len(m.rows))
	}
	m = key(m, "c")
	if len(m.rows) != 2 {
		t.Errorf("collapse all: expected 2 rows, got %d", len(m.rows))
	}
}

func TestModel_LoadError(t *testing.T) {
	m := loaded(t, New(fakeSource{err: errors.New("db gone")}, Target{MainTaskID: "mt-1"}))
	m.width, m.height = 60, 20

	if m.err == nil {
		t.Fatal("expected load error")
	}
	if !strings.Contains(m.View(), "db gone") {
		t.Error("view should show the error")
	}
}

func TestModel_SplitView(t *testing.T) {
	m := loaded(t, New(fakeSource{}, Target{MainTaskID: "mt-1"}))
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	m = updated.(Model)

	m = key(m, "j")
	view := m.View()
	for _, want := range []string{"Foundations", "ITEM_CREATED", "Olivia"} {
		if !strings.Contains(view, want) {
			t.Errorf("split view missing %q", want)
		}
	}

	m = key(m, "tab")
	if m.focusPane != FocusDetail {
		t.Fatal("tab should focus the detail pane")
	}
	m = key(m, "k")
	if m.cursor != 1 {
		t.Errorf("keys in the detail pane should not move the cursor, got %d", m.cursor)
	}
	m = key(m, "tab")
	if m.focusPane != FocusList {
		t.Error("tab should return focus to the list")
	}
}

func TestModel_NarrowDetailModal(t *testing.T) {
	m := loaded(t, New(fakeSource{}, Target{MainTaskID: "mt-1"}))
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 60, Height: 30})
	m = updated.(Model)

	m = key(m, "j")
	m = key(m, "enter")
	if m.viewMode != ViewDetail {
		t.Fatal("enter on an event should open the detail view when narrow")
	}
	if !strings.Contains(m.View(), "e1") {
		t.Error("detail view should show the event id")
	}
	m = key(m, "esc")
	if m.viewMode != ViewList {
		t.Error("esc should return to the list")
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name string
		e    model.TimelineEvent
		want string
	}{
		{"created", ev("a", "x", model.EventItemCreated, 0, map[string]any{"name": "Slab"}), `created "Slab"`},
		{"updated decoded", ev("a", "x", model.EventItemUpdated, 0, map[string]any{"fields": []any{"name", "due_date"}}), "updated name, due_date"},
		{"status", ev("a", "x", model.EventStatusChanged, 0, map[string]any{"oldStatus": "To Do", "newStatus": "Completed"}), "status To Do → Completed"},
		{"automatic", ev("a", "x", model.EventStatusChanged, 0, map[string]any{
			"oldStatus": "Completed", "newStatus": "In Progress", "automatic": true, "note": "automatically reopened: issue created",
		}), "status Completed → In Progress (automatic: automatically reopened: issue created)"},
		{"assignment", ev("a", "x", model.EventAssignmentChanged, 0, map[string]any{"added": []string{"max"}, "removed": []string{"vera"}}), "assignees +max -vera"},
		{"issue", ev("a", "x", model.EventIssueCreated, 0, map[string]any{"title": "Crack", "severity": "Critical"}), `raised issue "Crack" (Critical)`},
		{"attachment", ev("a", "x", model.EventAttachmentAdded, 0, map[string]any{"name": "photo.jpg"}), "attached photo.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summary(tt.e); got != tt.want {
				t.Errorf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPadToWidth(t *testing.T) {
	if got := padToWidth("ab", 4); got != "ab  " {
		t.Errorf("padToWidth = %q", got)
	}
	if got := padToWidth("abcdef", 4); got != "abcdef" {
		t.Errorf("padToWidth should not cut, got %q", got)
	}
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("truncate = %q", got)
	}
}
