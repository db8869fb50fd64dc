package engine

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/baiirun/worklog/internal/model"
)

// NewIssue holds the caller-supplied fields of a new issue.
type NewIssue struct {
	ItemID      string
	Title       string
	Description string
	Severity    model.Severity
	Assignees   []string
	DueDate     *time.Time
}

// CreateIssue raises an Open issue against a sub-task. If the sub-task was
// Completed it is demoted to In Progress by the state machine's hooks.
func (s *Service) CreateIssue(ctx context.Context, actor model.Actor, in NewIssue) (out Outcome, err error) {
	const op = "create issue"
	ctx, end := s.begin(ctx, "CreateIssue", attribute.String("item", in.ItemID))
	defer end(&err)

	item, err := s.getItem(ctx, op, in.ItemID)
	if err != nil {
		return out, err
	}
	if err := s.gate.CheckItem(actor, item, FieldChange(model.FieldIssues)); err != nil {
		return out, withOp(op, err)
	}
	if !item.IsSubTask() {
		return out, withOp(op, precondition("issues are raised against sub-tasks; %s is a main task", item.ID))
	}
	if strings.TrimSpace(in.Title) == "" {
		return out, withOp(op, precondition("issue title is required"))
	}
	if in.Severity == "" {
		in.Severity = model.SeverityNormal
	}
	if !in.Severity.IsValid() {
		return out, withOp(op, precondition("invalid severity %q", in.Severity))
	}

	now := s.now()
	issue := &model.Issue{
		ID:          model.NewIssueID(),
		ItemID:      item.ID,
		OwnerID:     actor.ID,
		Assignees:   in.Assignees,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Severity:    in.Severity,
		Status:      model.IssueOpen,
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateIssue(ctx, issue); err != nil {
		return out, fromStore(op, err)
	}
	out.Issue = issue
	out.Item = item

	s.record(ctx, &out, item.ID, actor.ID, model.EventIssueCreated, map[string]any{
		"issueId":  issue.ID,
		"title":    issue.Title,
		"severity": string(issue.Severity),
	})
	s.machine.IssueOpened(ctx, actor, issue, &out)
	return out, nil
}

// SetIssueStatus opens or closes an issue. Reopening an issue on a Completed
// sub-task demotes the sub-task; a failed demotion is a warning only.
func (s *Service) SetIssueStatus(ctx context.Context, actor model.Actor, issueID string, to model.IssueStatus) (out Outcome, err error) {
	const op = "set issue status"
	ctx, end := s.begin(ctx, "SetIssueStatus", attribute.String("issue", issueID), attribute.String("to", string(to)))
	defer end(&err)

	issue, err := s.getIssue(ctx, op, issueID)
	if err != nil {
		return out, err
	}
	if err := s.gate.CheckIssue(actor, issue, FieldChange(model.FieldStatus)); err != nil {
		return out, withOp(op, err)
	}
	noop, err := CheckIssueTransition(issue, to)
	if err != nil {
		return out, withOp(op, err)
	}
	if noop {
		out.Issue = issue
		return out, nil
	}

	if err := s.machine.TransitionIssue(ctx, actor, issue, to, &out); err != nil {
		return out, withOp(op, err)
	}
	return out, nil
}

// DeleteIssue removes an issue. The ISSUE_DELETED event is written to the
// sub-task's log before the removal. Owner only.
func (s *Service) DeleteIssue(ctx context.Context, actor model.Actor, issueID string) (out Outcome, err error) {
	const op = "delete issue"
	ctx, end := s.begin(ctx, "DeleteIssue", attribute.String("issue", issueID))
	defer end(&err)

	issue, err := s.getIssue(ctx, op, issueID)
	if err != nil {
		return out, err
	}
	if err := s.gate.CheckIssue(actor, issue, DeleteChange); err != nil {
		return out, withOp(op, err)
	}

	s.record(ctx, &out, issue.ItemID, actor.ID, model.EventIssueDeleted, map[string]any{
		"issueId": issue.ID,
		"title":   issue.Title,
	})
	if err := s.store.DeleteIssue(ctx, issue.ID); err != nil {
		return out, fromStore(op, err)
	}
	out.Issue = issue
	return out, nil
}

// ListIssues returns the issues raised against an item.
func (s *Service) ListIssues(ctx context.Context, itemID string) (issues []model.Issue, err error) {
	ctx, end := s.begin(ctx, "ListIssues", attribute.String("item", itemID))
	defer end(&err)

	issues, err = s.store.ListIssues(ctx, itemID)
	return issues, fromStore("list issues", err)
}
