package engine

import "github.com/baiirun/worklog/internal/model"

// Change is the mutation an actor is asking to perform.
type Change struct {
	Fields []model.Field
	Delete bool
}

// FieldChange is a shorthand for a change touching the given fields.
func FieldChange(fields ...model.Field) Change {
	return Change{Fields: fields}
}

// DeleteChange is the change for removing an entity.
var DeleteChange = Change{Delete: true}

// assigneeFields are what a status-capable assignee may touch on a sub-task.
var assigneeFields = map[model.Field]bool{
	model.FieldStatus:      true,
	model.FieldIssues:      true,
	model.FieldAttachments: true,
}

// Gate is the single authorization decision point. It holds no state; every
// mutating entry point calls it before touching the store.
type Gate struct{}

// CheckItem decides whether actor may apply change to item. Rules, first
// match wins: the owner may do anything; deletion is owner-only; non-assignees
// may do nothing; assignees with a status-capable role may touch only status,
// issues and attachments, and only on sub-tasks.
func (Gate) CheckItem(actor model.Actor, item *model.WorkItem, change Change) error {
	if item.OwnerID == actor.ID {
		return nil
	}
	if change.Delete {
		return deny(ReasonNotOwner, "only the owner may delete %s", item.ID)
	}
	if !item.IsAssigned(actor.ID) {
		return deny(ReasonNotAssigned, "%s is not assigned to %s", actor.ID, item.ID)
	}
	if !actor.Role.CanChangeStatus() {
		return deny(ReasonForbiddenField, "role %q may not modify %s", actor.Role, item.ID)
	}
	if item.IsMainTask() {
		return deny(ReasonForbiddenField, "main task %s may only be modified by its owner", item.ID)
	}
	for _, f := range change.Fields {
		if !assigneeFields[f] {
			return deny(ReasonForbiddenField, "role %q may not change %s on %s", actor.Role, f, item.ID)
		}
	}
	return nil
}

// CheckIssue applies the owner-or-assignee rule to an issue, independent of
// who is assigned to the sub-task it belongs to.
func (Gate) CheckIssue(actor model.Actor, issue *model.Issue, change Change) error {
	if issue.OwnerID == actor.ID {
		return nil
	}
	if change.Delete {
		return deny(ReasonNotOwner, "only the owner may delete issue %s", issue.ID)
	}
	if !issue.IsAssigned(actor.ID) {
		return deny(ReasonNotAssigned, "%s is not assigned to issue %s", actor.ID, issue.ID)
	}
	if !actor.Role.CanChangeStatus() {
		return deny(ReasonForbiddenField, "role %q may not modify issue %s", actor.Role, issue.ID)
	}
	for _, f := range change.Fields {
		if f != model.FieldStatus {
			return deny(ReasonForbiddenField, "role %q may not change %s on issue %s", actor.Role, f, issue.ID)
		}
	}
	return nil
}

// CheckProject allows only the project owner to add main tasks.
func (Gate) CheckProject(actor model.Actor, project *model.Project) error {
	if project.OwnerID == actor.ID {
		return nil
	}
	return deny(ReasonNotOwner, "only the owner may add tasks to project %s", project.ID)
}
