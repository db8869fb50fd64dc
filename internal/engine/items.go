package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/baiirun/worklog/internal/model"
	"github.com/baiirun/worklog/internal/storage"
)

// CreateProject creates a project owned by actor.
func (s *Service) CreateProject(ctx context.Context, actor model.Actor, name string) (p *model.Project, err error) {
	const op = "create project"
	ctx, end := s.begin(ctx, "CreateProject")
	defer end(&err)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, withOp(op, precondition("project name is required"))
	}
	now := s.now()
	p = &model.Project{ID: model.NewProjectID(), Name: name, OwnerID: actor.ID, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, fromStore(op, err)
	}
	return p, nil
}

// ListProjects returns every project.
func (s *Service) ListProjects(ctx context.Context) (projects []model.Project, err error) {
	ctx, end := s.begin(ctx, "ListProjects")
	defer end(&err)

	projects, err = s.store.ListProjects(ctx)
	return projects, fromStore("list projects", err)
}

// NewItem holds the caller-supplied fields of a new work item.
type NewItem struct {
	ProjectID    string
	Kind         model.ItemKind
	Name         string
	Description  string
	Assignees    []string
	DueDate      *time.Time
	AmountCents  int64
	ReminderDays *int
}

// CreateMainTask adds a main task to a project. Only the project owner may.
func (s *Service) CreateMainTask(ctx context.Context, actor model.Actor, in NewItem) (out Outcome, err error) {
	const op = "create main task"
	ctx, end := s.begin(ctx, "CreateMainTask", attribute.String("project", in.ProjectID))
	defer end(&err)

	if in.Kind == "" {
		in.Kind = model.KindStandard
	}
	if err := validateNewItem(in); err != nil {
		return out, withOp(op, err)
	}
	project, err := s.store.GetProject(ctx, in.ProjectID)
	if err != nil {
		return out, fromStore(op, err)
	}
	if err := s.gate.CheckProject(actor, project); err != nil {
		return out, withOp(op, err)
	}

	item := s.newWorkItem(actor, in, nil)
	if err := s.store.CreateItem(ctx, item); err != nil {
		return out, fromStore(op, err)
	}
	out.Item = item
	s.record(ctx, &out, item.ID, actor.ID, model.EventItemCreated, map[string]any{
		"name": item.Name,
		"kind": string(item.Kind),
	})
	return out, nil
}

// CreateSubTask adds a sub-task under a standard main task. Only the main
// task's owner may.
func (s *Service) CreateSubTask(ctx context.Context, actor model.Actor, parentID string, in NewItem) (out Outcome, err error) {
	const op = "create sub-task"
	ctx, end := s.begin(ctx, "CreateSubTask", attribute.String("parent", parentID))
	defer end(&err)

	parent, err := s.getItem(ctx, op, parentID)
	if err != nil {
		return out, err
	}
	if err := s.gate.CheckItem(actor, parent, FieldChange(model.FieldSubTasks)); err != nil {
		return out, withOp(op, err)
	}
	if parent.IsSubTask() {
		return out, withOp(op, precondition("%s is a sub-task; sub-tasks cannot be nested", parent.ID))
	}
	if parent.IsCollection() {
		return out, withOp(op, precondition("collection task %s has no sub-tasks", parent.ID))
	}

	in.ProjectID = parent.ProjectID
	in.Kind = model.KindStandard
	if err := validateNewItem(in); err != nil {
		return out, withOp(op, err)
	}

	item := s.newWorkItem(actor, in, &parent.ID)
	if err := s.store.CreateItem(ctx, item); err != nil {
		return out, fromStore(op, err)
	}
	out.Item = item
	s.record(ctx, &out, item.ID, actor.ID, model.EventItemCreated, map[string]any{
		"name":     item.Name,
		"parentId": parent.ID,
	})
	return out, nil
}

func validateNewItem(in NewItem) error {
	if strings.TrimSpace(in.Name) == "" {
		return precondition("name is required")
	}
	if !in.Kind.IsValid() {
		return precondition("invalid kind %q", in.Kind)
	}
	if in.Kind != model.KindCollection && (in.AmountCents != 0 || in.ReminderDays != nil) {
		return precondition("amount and reminder apply to collection tasks only")
	}
	if in.AmountCents < 0 {
		return precondition("amount must not be negative")
	}
	if in.ReminderDays != nil && *in.ReminderDays < 0 {
		return precondition("reminder days must not be negative")
	}
	return nil
}

func (s *Service) newWorkItem(actor model.Actor, in NewItem, parentID *string) *model.WorkItem {
	now := s.now()
	return &model.WorkItem{
		ID:           model.NewItemID(parentID != nil),
		ProjectID:    in.ProjectID,
		ParentID:     parentID,
		OwnerID:      actor.ID,
		Assignees:    in.Assignees,
		Kind:         in.Kind,
		Name:         strings.TrimSpace(in.Name),
		Description:  in.Description,
		Status:       model.StatusToDo,
		DueDate:      in.DueDate,
		CreatedAt:    now,
		UpdatedAt:    now,
		AmountCents:  in.AmountCents,
		ReminderDays: in.ReminderDays,
	}
}

// UpdateItem edits name, description, due date, amount or reminder.
func (s *Service) UpdateItem(ctx context.Context, actor model.Actor, id string, u model.ItemUpdate) (out Outcome, err error) {
	const op = "update item"
	ctx, end := s.begin(ctx, "UpdateItem", attribute.String("item", id))
	defer end(&err)

	if u.IsEmpty() {
		return out, withOp(op, precondition("nothing to update"))
	}
	item, err := s.getItem(ctx, op, id)
	if err != nil {
		return out, err
	}
	fields := u.Fields()
	if err := s.gate.CheckItem(actor, item, FieldChange(fields...)); err != nil {
		return out, withOp(op, err)
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return out, withOp(op, precondition("name is required"))
	}
	if (u.AmountCents != nil || u.ReminderDays != nil) && !item.IsCollection() {
		return out, withOp(op, precondition("amount and reminder apply to collection tasks only"))
	}

	if err := s.store.UpdateItem(ctx, id, u); err != nil {
		return out, fromStore(op, err)
	}
	if reloaded, rerr := s.store.GetItem(ctx, id); rerr != nil {
		s.warn(ctx, &out, "reload item", id, rerr)
	} else {
		out.Item = reloaded
	}

	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	s.record(ctx, &out, id, actor.ID, model.EventItemUpdated, map[string]any{"fields": names})
	return out, nil
}

// SetAssignees replaces an item's assignee set. Unchanged sets are a no-op.
func (s *Service) SetAssignees(ctx context.Context, actor model.Actor, id string, assignees []string) (out Outcome, err error) {
	const op = "set assignees"
	ctx, end := s.begin(ctx, "SetAssignees", attribute.String("item", id))
	defer end(&err)

	item, err := s.getItem(ctx, op, id)
	if err != nil {
		return out, err
	}
	if err := s.gate.CheckItem(actor, item, FieldChange(model.FieldAssignees)); err != nil {
		return out, withOp(op, err)
	}

	added, removed := diffActors(item.Assignees, assignees)
	out.Item = item
	if len(added) == 0 && len(removed) == 0 {
		return out, nil
	}
	if err := s.store.SetAssignees(ctx, id, assignees); err != nil {
		return out, fromStore(op, err)
	}

	updated := *item
	updated.Assignees = normalize(assignees)
	out.Item = &updated
	s.record(ctx, &out, id, actor.ID, model.EventAssignmentChanged, map[string]any{
		"added":   added,
		"removed": removed,
	})
	return out, nil
}

func normalize(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func diffActors(before, after []string) (added, removed []string) {
	b, a := normalize(before), normalize(after)
	inBefore := make(map[string]bool, len(b))
	for _, id := range b {
		inBefore[id] = true
	}
	inAfter := make(map[string]bool, len(a))
	for _, id := range a {
		inAfter[id] = true
		if !inBefore[id] {
			added = append(added, id)
		}
	}
	for _, id := range b {
		if !inAfter[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}

// Proof is completion evidence uploaded with a transition to Completed.
type Proof struct {
	Name     string
	Content  []byte
	Progress storage.ProgressFunc
}

// StatusOption adjusts a ChangeStatus call.
type StatusOption func(*statusRequest)

type statusRequest struct {
	proof *Proof
}

// WithProof attaches completion proof to a transition to Completed.
func WithProof(p Proof) StatusOption {
	return func(r *statusRequest) { r.proof = &p }
}

// ChangeStatus moves a sub-task or collection task to a new status.
//
// Completing a sub-task is refused while it has an open issue. When proof is
// supplied, or required by configuration, it is stored before the status
// write; if the write then fails the proof is removed again, so neither
// lands without the other.
func (s *Service) ChangeStatus(ctx context.Context, actor model.Actor, id string, to model.Status, opts ...StatusOption) (out Outcome, err error) {
	const op = "change status"
	ctx, end := s.begin(ctx, "ChangeStatus", attribute.String("item", id), attribute.String("to", string(to)))
	defer end(&err)

	var req statusRequest
	for _, o := range opts {
		o(&req)
	}

	item, err := s.getItem(ctx, op, id)
	if err != nil {
		return out, err
	}
	if err := s.gate.CheckItem(actor, item, FieldChange(model.FieldStatus)); err != nil {
		return out, withOp(op, err)
	}
	noop, err := CheckItemTransition(item, to)
	if err != nil {
		return out, withOp(op, err)
	}
	if noop {
		out.Item = item
		return out, nil
	}

	completing := to == model.StatusCompleted
	if req.proof != nil && !completing {
		return out, withOp(op, precondition("proof accompanies a transition to %s only", model.StatusCompleted))
	}
	if completing && item.IsSubTask() {
		open, err := s.store.CountOpenIssues(ctx, item.ID)
		if err != nil {
			return out, fromStore(op, err)
		}
		if open > 0 {
			return out, withOp(op, precondition("open issues must be resolved first (%d open on %s)", open, item.ID))
		}
		if s.opts.RequireCompletionProof && req.proof == nil {
			return out, withOp(op, precondition("completion proof is required to complete %s", item.ID))
		}
	}

	detail := map[string]any{}
	var proof *model.Attachment
	if req.proof != nil {
		proof, err = s.storeAttachment(ctx, actor, item, *req.proof, true)
		if err != nil {
			return out, withOp(op, err)
		}
		detail["proofUrl"] = proof.URL
		detail["attachmentId"] = proof.ID
	}

	if err := s.machine.TransitionItem(ctx, actor, item, to, detail, &out); err != nil {
		if proof != nil {
			s.discardAttachment(ctx, &out, proof)
		}
		return out, withOp(op, err)
	}
	out.Attachment = proof
	return out, nil
}

// DeleteWorkItem removes an item. Deleting a main task removes its sub-tasks
// too, each with its issues, events and attachments, in one store
// transaction. Stored files go afterwards; failures there are warnings.
// Owner only.
func (s *Service) DeleteWorkItem(ctx context.Context, actor model.Actor, id string) (out Outcome, err error) {
	const op = "delete item"
	ctx, end := s.begin(ctx, "DeleteWorkItem", attribute.String("item", id))
	defer end(&err)

	item, err := s.getItem(ctx, op, id)
	if err != nil {
		return out, err
	}
	if err := s.gate.CheckItem(actor, item, DeleteChange); err != nil {
		return out, withOp(op, err)
	}

	ids := []string{id}
	if item.IsMainTask() {
		children, err := s.store.ListChildren(ctx, id)
		if err != nil {
			return out, fromStore(op, err)
		}
		for _, c := range children {
			ids = append(ids, c.ID)
		}
	}
	files := s.storedFiles(ctx, &out, ids)

	if err := s.store.DeleteTree(ctx, id); err != nil {
		return out, fromStore(op, err)
	}
	for _, a := range files {
		if err := s.files.Delete(ctx, a.URL); err != nil {
			s.warn(ctx, &out, "delete attachment file", a.ItemID, err)
		}
	}
	out.Item = item
	return out, nil
}

// storedFiles collects the attachments of ids whose files must be removed.
func (s *Service) storedFiles(ctx context.Context, out *Outcome, ids []string) []model.Attachment {
	if s.files == nil {
		return nil
	}
	var files []model.Attachment
	for _, id := range ids {
		list, err := s.store.ListAttachments(ctx, id)
		if err != nil {
			s.warn(ctx, out, "list attachments", id, err)
			continue
		}
		files = append(files, list...)
	}
	return files
}

// Describe is a read view of one work item.
type Describe struct {
	Item        *model.WorkItem
	Progress    *Progress
	Children    []model.WorkItem
	Issues      []model.Issue
	Attachments []model.Attachment
}

// DescribeItem loads an item with its derived progress, sub-tasks, issues
// and attachments. For standard main tasks Item.Status carries the derived
// status.
func (s *Service) DescribeItem(ctx context.Context, id string) (d Describe, err error) {
	const op = "describe item"
	ctx, end := s.begin(ctx, "DescribeItem", attribute.String("item", id))
	defer end(&err)

	if d.Item, err = s.getItem(ctx, op, id); err != nil {
		return d, err
	}
	if d.Item.IsMainTask() {
		if d.Children, err = s.store.ListChildren(ctx, id); err != nil {
			return d, fromStore(op, err)
		}
		p := collectionProgress(d.Item)
		if d.Item.HasDerivedStatus() {
			p = DeriveProgress(d.Children)
			d.Item.Status = p.Status
		}
		d.Progress = &p
	}
	if d.Issues, err = s.store.ListIssues(ctx, id); err != nil {
		return d, fromStore(op, err)
	}
	if d.Attachments, err = s.store.ListAttachments(ctx, id); err != nil {
		return d, fromStore(op, err)
	}
	return d, nil
}

// ListAssigned returns the items actor is assigned to.
func (s *Service) ListAssigned(ctx context.Context, actor model.Actor) (items []model.WorkItem, err error) {
	ctx, end := s.begin(ctx, "ListAssigned")
	defer end(&err)

	items, err = s.store.ListByAssignee(ctx, actor.ID)
	return items, fromStore("list assigned", err)
}

// CollectionReminders lists open collection tasks of a project whose due date
// is within their reminder threshold of at, overdue ones included, soonest
// due first.
func (s *Service) CollectionReminders(ctx context.Context, projectID string, at time.Time) (due []model.WorkItem, err error) {
	const op = "collection reminders"
	ctx, end := s.begin(ctx, "CollectionReminders", attribute.String("project", projectID))
	defer end(&err)

	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, fromStore(op, err)
	}
	tasks, err := s.store.ListMainTasks(ctx, projectID)
	if err != nil {
		return nil, fromStore(op, err)
	}
	for _, t := range tasks {
		if ReminderDue(t, at) {
			due = append(due, t)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].DueDate.Before(*due[j].DueDate) })
	return due, nil
}

// ReminderDue reports whether a collection task should be reminded about at
// the given time.
func ReminderDue(t model.WorkItem, at time.Time) bool {
	if !t.IsCollection() || t.Status == model.StatusCompleted || t.DueDate == nil || t.ReminderDays == nil {
		return false
	}
	threshold := time.Duration(*t.ReminderDays) * 24 * time.Hour
	return t.DueDate.Sub(at) <= threshold
}

// String renders an outcome's warnings for logs and CLI output.
func (o Outcome) String() string {
	if len(o.Warnings) == 0 {
		return ""
	}
	parts := make([]string, len(o.Warnings))
	for i, w := range o.Warnings {
		parts[i] = w.String()
	}
	return fmt.Sprintf("%d warning(s): %s", len(parts), strings.Join(parts, "; "))
}
