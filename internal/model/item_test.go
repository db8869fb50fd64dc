package model

import (
	"strings"
	"testing"
	"time"
)

func TestNewItemID(t *testing.T) {
	tests := []struct {
		sub    bool
		prefix string
	}{
		{false, "mt-"},
		{true, "st-"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			id := NewItemID(tt.sub)

			if !strings.HasPrefix(id, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, id)
			}

			// prefix (3 chars) + 32 hex chars
			if len(id) != 35 {
				t.Errorf("expected length 35, got %d (%q)", len(id), id)
			}
		})
	}
}

func TestNewEventID_Ordered(t *testing.T) {
	prev := NewEventID()
	for i := 0; i < 100; i++ {
		id := NewEventID()
		if id <= prev {
			t.Fatalf("ids not increasing: %q then %q", prev, id)
		}
		prev = id
	}
}

func TestItemKind_IsValid(t *testing.T) {
	tests := []struct {
		kind  ItemKind
		valid bool
	}{
		{KindStandard, true},
		{KindCollection, true},
		{ItemKind(""), false},
		{ItemKind("Standard"), false}, // case sensitive
		{ItemKind("epic"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestStatus_IsValid(t *testing.T) {
	tests := []struct {
		status Status
		valid  bool
	}{
		{StatusToDo, true},
		{StatusInProgress, true},
		{StatusCompleted, true},
		{Status("To Do"), true},
		{Status(""), false},
		{Status("done"), false},
		{Status("completed"), false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestWorkItem_HasDerivedStatus(t *testing.T) {
	parent := "mt-1"
	tests := []struct {
		name string
		item WorkItem
		want bool
	}{
		{"standard main", WorkItem{Kind: KindStandard}, true},
		{"collection main", WorkItem{Kind: KindCollection}, false},
		{"sub-task", WorkItem{Kind: KindStandard, ParentID: &parent}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.HasDerivedStatus(); got != tt.want {
				t.Errorf("HasDerivedStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestItemUpdate_Fields(t *testing.T) {
	name := "n"
	amount := int64(500)
	u := ItemUpdate{Name: &name, AmountCents: &amount, ClearDueDate: true}

	got := u.Fields()
	want := []Field{FieldName, FieldDueDate, FieldAmount}
	if len(got) != len(want) {
		t.Fatalf("Fields() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Fields()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if (ItemUpdate{}).IsEmpty() != true {
		t.Error("empty update should report IsEmpty")
	}
}

func TestSortAggregatedDesc(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e1 := TimelineEvent{ID: "ev-1", CreatedAt: base}
	e3 := TimelineEvent{ID: "ev-3", CreatedAt: base.Add(2 * time.Hour)}
	group := &EventGroup{ItemID: "st-1", Events: []TimelineEvent{{ID: "ev-2", CreatedAt: base.Add(time.Hour)}}}

	entries := []AggregatedEvent{
		{Event: &e1, At: e1.CreatedAt},
		{Group: group, At: base.Add(time.Hour)},
		{Event: &e3, At: e3.CreatedAt},
	}
	SortAggregatedDesc(entries)

	if entries[0].Event == nil || entries[0].Event.ID != "ev-3" {
		t.Errorf("first entry should be ev-3")
	}
	if entries[1].Group == nil {
		t.Errorf("second entry should be the group")
	}
	if entries[1].Count() != 1 || entries[2].Count() != 1 {
		t.Errorf("unexpected counts")
	}
}
