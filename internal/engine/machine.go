package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/baiirun/worklog/internal/model"
)

// Transition describes a committed status change. For issue transitions
// Issue is set and ItemID is the sub-task the issue belongs to. From is empty
// when the issue was just created.
type Transition struct {
	Actor  model.Actor
	ItemID string
	Issue  *model.Issue
	From   string
	To     string
}

// Hook runs after a transition has committed. A returned error is recorded
// as a CascadeWarning; it never undoes the transition.
type Hook func(ctx context.Context, m *Machine, t Transition, out *Outcome) error

// Machine validates and applies status transitions and dispatches
// post-commit hooks.
type Machine struct {
	svc   *Service
	hooks []Hook
}

func NewMachine(s *Service) *Machine {
	return &Machine{svc: s}
}

// Use appends hooks. They run in registration order.
func (m *Machine) Use(hooks ...Hook) {
	m.hooks = append(m.hooks, hooks...)
}

// CheckItemTransition reports whether item may move to the target status.
// noop is true when the item is already there.
//
// Sub-tasks follow To Do -> In Progress -> Completed, may skip straight to
// Completed, and reopen only to In Progress. Collection main tasks toggle
// between To Do and Completed. Standard main tasks have no settable status.
func CheckItemTransition(item *model.WorkItem, to model.Status) (noop bool, err error) {
	if !to.IsValid() {
		return false, precondition("invalid status %q", to)
	}
	if item.HasDerivedStatus() {
		return false, precondition("status of main task %s is derived from its sub-tasks", item.ID)
	}
	if item.Status == to {
		return true, nil
	}
	if item.IsCollection() {
		if to == model.StatusInProgress {
			return false, precondition("collection task %s is either %s or %s", item.ID, model.StatusToDo, model.StatusCompleted)
		}
		return false, nil
	}
	if item.Status == model.StatusCompleted && to == model.StatusToDo {
		return false, precondition("completed items reopen to %s, not %s", model.StatusInProgress, model.StatusToDo)
	}
	return false, nil
}

// CheckIssueTransition reports whether issue may move to the target status.
func CheckIssueTransition(issue *model.Issue, to model.IssueStatus) (noop bool, err error) {
	if !to.IsValid() {
		return false, precondition("invalid issue status %q", to)
	}
	return issue.Status == to, nil
}

// TransitionItem writes the new status with compare-and-set, records a
// STATUS_CHANGED event carrying detail, and runs hooks. Only the status write
// can fail the call.
func (m *Machine) TransitionItem(ctx context.Context, actor model.Actor, item *model.WorkItem, to model.Status, detail map[string]any, out *Outcome) error {
	from := item.Status
	if err := m.svc.store.SetItemStatus(ctx, item.ID, from, to); err != nil {
		return fromStore("set status", err)
	}
	m.svc.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", "item"),
		attribute.String("to", string(to)),
	))

	updated := *item
	updated.Status = to
	updated.UpdatedAt = m.svc.now()
	out.Item = &updated

	payload := map[string]any{"oldStatus": string(from), "newStatus": string(to)}
	for k, v := range detail {
		payload[k] = v
	}
	m.svc.record(ctx, out, item.ID, actor.ID, model.EventStatusChanged, payload)

	m.runHooks(ctx, Transition{Actor: actor, ItemID: item.ID, From: string(from), To: string(to)}, out)
	return nil
}

// TransitionIssue writes the issue's new status, records
// ISSUE_STATUS_CHANGED on the owning sub-task, and runs hooks.
func (m *Machine) TransitionIssue(ctx context.Context, actor model.Actor, issue *model.Issue, to model.IssueStatus, out *Outcome) error {
	from := issue.Status
	if err := m.svc.store.SetIssueStatus(ctx, issue.ID, from, to); err != nil {
		return fromStore("set issue status", err)
	}
	m.svc.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", "issue"),
		attribute.String("to", string(to)),
	))

	updated := *issue
	updated.Status = to
	updated.UpdatedAt = m.svc.now()
	out.Issue = &updated

	m.svc.record(ctx, out, issue.ItemID, actor.ID, model.EventIssueStatusChanged, map[string]any{
		"issueId":   issue.ID,
		"title":     issue.Title,
		"oldStatus": string(from),
		"newStatus": string(to),
	})

	m.runHooks(ctx, Transition{Actor: actor, ItemID: issue.ItemID, Issue: &updated, From: string(from), To: string(to)}, out)
	return nil
}

// IssueOpened dispatches hooks for a freshly created issue.
func (m *Machine) IssueOpened(ctx context.Context, actor model.Actor, issue *model.Issue, out *Outcome) {
	m.runHooks(ctx, Transition{Actor: actor, ItemID: issue.ItemID, Issue: issue, To: string(issue.Status)}, out)
}

func (m *Machine) runHooks(ctx context.Context, t Transition, out *Outcome) {
	for _, hook := range m.hooks {
		if err := hook(ctx, m, t, out); err != nil {
			m.svc.warn(ctx, out, "cascade", t.ItemID, err)
		}
	}
}

// DemoteOnIssueOpen moves a Completed sub-task back to In Progress when one
// of its issues becomes Open, either by creation or by reopening. The
// open-issue guard does not apply because this is a demotion.
func DemoteOnIssueOpen(ctx context.Context, m *Machine, t Transition, out *Outcome) error {
	if t.Issue == nil || t.To != string(model.IssueOpen) {
		return nil
	}
	item, err := m.svc.store.GetItem(ctx, t.Issue.ItemID)
	if err != nil {
		return fromStore("demote", err)
	}
	if item.Status != model.StatusCompleted {
		return nil
	}

	cause := "issue reopened"
	if t.From == "" {
		cause = "issue created"
	}
	return m.TransitionItem(ctx, t.Actor, item, model.StatusInProgress, map[string]any{
		"automatic": true,
		"issueId":   t.Issue.ID,
		"note":      "automatically reopened: " + cause,
	}, out)
}
