package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/baiirun/worklog/internal/engine"
	"github.com/baiirun/worklog/internal/model"
	"github.com/baiirun/worklog/internal/tui"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	statusColors = map[model.Status]lipgloss.Color{
		model.StatusToDo:       lipgloss.Color("252"),
		model.StatusInProgress: lipgloss.Color("214"),
		model.StatusCompleted:  lipgloss.Color("42"),
	}
)

const dateLayout = "2006-01-02"

// JSON output types. Slices are always non-nil so empty results encode as [].

type ProjectJSON struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Owner     string    `json:"owner" yaml:"owner"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

type ItemJSON struct {
	ID           string   `json:"id" yaml:"id"`
	Project      string   `json:"project" yaml:"project"`
	Parent       *string  `json:"parent,omitempty" yaml:"parent,omitempty"`
	Kind         string   `json:"kind" yaml:"kind"`
	Name         string   `json:"name" yaml:"name"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	Status       string   `json:"status" yaml:"status"`
	Owner        string   `json:"owner" yaml:"owner"`
	Assignees    []string `json:"assignees" yaml:"assignees"`
	DueDate      *string  `json:"due_date,omitempty" yaml:"due_date,omitempty"`
	AmountCents  int64    `json:"amount_cents,omitempty" yaml:"amount_cents,omitempty"`
	ReminderDays *int     `json:"reminder_days,omitempty" yaml:"reminder_days,omitempty"`
}

type IssueJSON struct {
	ID        string   `json:"id"`
	Item      string   `json:"item"`
	Title     string   `json:"title"`
	Severity  string   `json:"severity"`
	Status    string   `json:"status"`
	Owner     string   `json:"owner"`
	Assignees []string `json:"assignees"`
}

type AttachmentJSON struct {
	ID    string `json:"id"`
	Item  string `json:"item"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Proof bool   `json:"proof"`
}

type ItemShowJSON struct {
	ItemJSON
	Progress    *engine.Progress `json:"progress,omitempty"`
	SubTasks    []ItemJSON       `json:"sub_tasks"`
	Issues      []IssueJSON      `json:"issues"`
	Attachments []AttachmentJSON `json:"attachments"`
}

type OutcomeJSON struct {
	Item       *ItemJSON       `json:"item,omitempty"`
	Issue      *IssueJSON      `json:"issue,omitempty"`
	Attachment *AttachmentJSON `json:"attachment,omitempty"`
	Events     []string        `json:"events"`
	Warnings   []string        `json:"warnings"`
}

type EventJSON struct {
	ID     string         `json:"id" yaml:"id"`
	Item   string         `json:"item" yaml:"item"`
	Kind   string         `json:"kind" yaml:"kind"`
	Author string         `json:"author" yaml:"author"`
	At     time.Time      `json:"at" yaml:"at"`
	Detail map[string]any `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// EntryJSON is one aggregated timeline entry: an event, or a sub-task group.
type EntryJSON struct {
	At       time.Time   `json:"at" yaml:"at"`
	Event    *EventJSON  `json:"event,omitempty" yaml:"event,omitempty"`
	SubTask  string      `json:"sub_task,omitempty" yaml:"sub_task,omitempty"`
	Name     string      `json:"name,omitempty" yaml:"name,omitempty"`
	Children []EventJSON `json:"events,omitempty" yaml:"events,omitempty"`
}

type TaskTimelineJSON struct {
	Task     ItemJSON    `json:"task" yaml:"task"`
	LatestAt time.Time   `json:"latest_at" yaml:"latest_at"`
	Entries  []EntryJSON `json:"entries" yaml:"entries"`
}

type ProgressJSON struct {
	Task     ItemJSON        `json:"task"`
	Progress engine.Progress `json:"progress"`
}

type ProjectProgressJSON struct {
	Project string         `json:"project"`
	Percent int            `json:"percent"`
	Tasks   []ProgressJSON `json:"tasks"`
	Omitted []string       `json:"omitted"`
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}

func projectJSON(p model.Project) ProjectJSON {
	return ProjectJSON{ID: p.ID, Name: p.Name, Owner: p.OwnerID, CreatedAt: p.CreatedAt}
}

func itemJSON(it model.WorkItem) ItemJSON {
	out := ItemJSON{
		ID:           it.ID,
		Project:      it.ProjectID,
		Parent:       it.ParentID,
		Kind:         string(it.Kind),
		Name:         it.Name,
		Description:  it.Description,
		Status:       string(it.Status),
		Owner:        it.OwnerID,
		Assignees:    nonNil(it.Assignees),
		AmountCents:  it.AmountCents,
		ReminderDays: it.ReminderDays,
	}
	if it.DueDate != nil {
		d := it.DueDate.UTC().Format(dateLayout)
		out.DueDate = &d
	}
	return out
}

func issueJSON(is model.Issue) IssueJSON {
	return IssueJSON{
		ID:        is.ID,
		Item:      is.ItemID,
		Title:     is.Title,
		Severity:  string(is.Severity),
		Status:    string(is.Status),
		Owner:     is.OwnerID,
		Assignees: nonNil(is.Assignees),
	}
}

func attachmentJSON(a model.Attachment) AttachmentJSON {
	return AttachmentJSON{ID: a.ID, Item: a.ItemID, Name: a.Name, URL: a.URL, Proof: a.Proof}
}

func outcomeJSON(o engine.Outcome) OutcomeJSON {
	out := OutcomeJSON{Events: nonNil(o.Events), Warnings: []string{}}
	if o.Item != nil {
		it := itemJSON(*o.Item)
		out.Item = &it
	}
	if o.Issue != nil {
		is := issueJSON(*o.Issue)
		out.Issue = &is
	}
	if o.Attachment != nil {
		a := attachmentJSON(*o.Attachment)
		out.Attachment = &a
	}
	for _, w := range o.Warnings {
		out.Warnings = append(out.Warnings, w.String())
	}
	return out
}

func showJSON(d engine.Describe) ItemShowJSON {
	out := ItemShowJSON{
		ItemJSON:    itemJSON(*d.Item),
		Progress:    d.Progress,
		SubTasks:    make([]ItemJSON, 0, len(d.Children)),
		Issues:      make([]IssueJSON, 0, len(d.Issues)),
		Attachments: make([]AttachmentJSON, 0, len(d.Attachments)),
	}
	for _, c := range d.Children {
		out.SubTasks = append(out.SubTasks, itemJSON(c))
	}
	for _, is := range d.Issues {
		out.Issues = append(out.Issues, issueJSON(is))
	}
	for _, a := range d.Attachments {
		out.Attachments = append(out.Attachments, attachmentJSON(a))
	}
	return out
}

func eventJSON(e model.TimelineEvent) EventJSON {
	return EventJSON{ID: e.ID, Item: e.ItemID, Kind: string(e.Kind), Author: e.AuthorName, At: e.CreatedAt, Detail: e.Detail}
}

func entriesJSON(entries []model.AggregatedEvent) []EntryJSON {
	out := make([]EntryJSON, 0, len(entries))
	for _, e := range entries {
		entry := EntryJSON{At: e.At}
		if e.Event != nil {
			ev := eventJSON(*e.Event)
			entry.Event = &ev
		} else if e.Group != nil {
			entry.SubTask = e.Group.ItemID
			entry.Name = e.Group.ItemName
			for _, ev := range e.Group.Events {
				entry.Children = append(entry.Children, eventJSON(ev))
			}
		}
		out = append(out, entry)
	}
	return out
}

func timelinesJSON(tls []model.TaskTimeline) []TaskTimelineJSON {
	out := make([]TaskTimelineJSON, 0, len(tls))
	for _, tl := range tls {
		out = append(out, TaskTimelineJSON{Task: itemJSON(tl.Task), LatestAt: tl.LatestAt, Entries: entriesJSON(tl.Entries)})
	}
	return out
}

func projectProgressJSON(pp engine.ProjectProgress) ProjectProgressJSON {
	out := ProjectProgressJSON{Project: pp.ProjectID, Percent: pp.Percent, Tasks: make([]ProgressJSON, 0, len(pp.Tasks)), Omitted: nonNil(pp.Omitted)}
	for _, t := range pp.Tasks {
		out.Tasks = append(out.Tasks, ProgressJSON{Task: itemJSON(t.Task), Progress: t.Progress})
	}
	return out
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func statusText(s model.Status) string {
	return lipgloss.NewStyle().Foreground(statusColors[s]).Render(string(s))
}

// printOutcome reports a mutation: the confirmation line, then any warnings.
func printOutcome(w io.Writer, msg string, o engine.Outcome) error {
	if flagJSON {
		return printJSON(w, outcomeJSON(o))
	}
	fmt.Fprintln(w, okStyle.Render(msg))
	for _, warning := range o.Warnings {
		fmt.Fprintln(w, warnStyle.Render("warning: "+warning.String()))
	}
	return nil
}

func printItemLine(w io.Writer, it model.WorkItem) {
	line := fmt.Sprintf("%s  %-11s  %s", dimStyle.Render(it.ID), statusText(it.Status), it.Name)
	if it.Kind == model.KindCollection {
		line += dimStyle.Render(fmt.Sprintf("  [collection %s]", money(it.AmountCents)))
	}
	if it.DueDate != nil {
		line += dimStyle.Render("  due " + it.DueDate.UTC().Format(dateLayout))
	}
	fmt.Fprintln(w, line)
}

func money(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func printDescribe(w io.Writer, d engine.Describe) {
	it := d.Item
	fmt.Fprintln(w, titleStyle.Render(it.Name))
	row := func(label, value string) {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(label+":"), value)
	}
	row("ID", it.ID)
	row("Project", it.ProjectID)
	if it.ParentID != nil {
		row("Parent", *it.ParentID)
	}
	row("Kind", string(it.Kind))
	row("Status", statusText(it.Status))
	row("Owner", it.OwnerID)
	if len(it.Assignees) > 0 {
		row("Assignees", strings.Join(it.Assignees, ", "))
	}
	if it.DueDate != nil {
		row("Due", it.DueDate.UTC().Format(dateLayout))
	}
	if it.Kind == model.KindCollection {
		row("Amount", money(it.AmountCents))
		if it.ReminderDays != nil {
			row("Reminder", fmt.Sprintf("%d days before due", *it.ReminderDays))
		}
	}
	if d.Progress != nil {
		row("Progress", fmt.Sprintf("%d%% (%d/%d)", d.Progress.Percent, d.Progress.Completed, d.Progress.Total))
	}
	if it.Description != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, it.Description)
	}
	if len(d.Children) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, labelStyle.Render("Sub-tasks:"))
		for _, c := range d.Children {
			printItemLine(w, c)
		}
	}
	if len(d.Issues) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, labelStyle.Render("Issues:"))
		for _, is := range d.Issues {
			fmt.Fprintf(w, "%s  %-6s  %-8s  %s\n", dimStyle.Render(is.ID), is.Status, is.Severity, is.Title)
		}
	}
	if len(d.Attachments) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, labelStyle.Render("Attachments:"))
		for _, a := range d.Attachments {
			proof := ""
			if a.Proof {
				proof = okStyle.Render(" (proof)")
			}
			fmt.Fprintf(w, "%s  %s%s  %s\n", dimStyle.Render(a.ID), a.Name, proof, dimStyle.Render(a.URL))
		}
	}
}

func printEvent(w io.Writer, indent string, e model.TimelineEvent) {
	fmt.Fprintf(w, "%s%s  %s: %s\n", indent, dimStyle.Render(e.CreatedAt.Local().Format("2006-01-02 15:04")), e.AuthorName, tui.Summary(e))
}

func printEntries(w io.Writer, indent string, entries []model.AggregatedEvent) {
	for _, e := range entries {
		if e.Event != nil {
			printEvent(w, indent, *e.Event)
			continue
		}
		if e.Group == nil {
			continue
		}
		fmt.Fprintf(w, "%s%s  %s\n", indent, dimStyle.Render(e.At.Local().Format("2006-01-02 15:04")), labelStyle.Render(tui.GroupSummary(e.Group)))
		for _, ev := range e.Group.Events {
			printEvent(w, indent+"    ", ev)
		}
	}
}
