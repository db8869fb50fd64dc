package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/baiirun/worklog/internal/model"
)

func TestGate_CheckItem(t *testing.T) {
	parent := "mt-1"
	sub := &model.WorkItem{ID: "st-1", ParentID: &parent, OwnerID: "olivia", Assignees: []string{"max", "vera", "sam"}}
	main := &model.WorkItem{ID: "mt-1", OwnerID: "olivia", Assignees: []string{"max"}}

	owner := model.Actor{ID: "olivia", Role: model.RoleViewer}
	member := model.Actor{ID: "max", Role: model.RoleMember}
	supervisor := model.Actor{ID: "sam", Role: model.RoleSupervisor}
	viewer := model.Actor{ID: "vera", Role: model.RoleViewer}
	outsider := model.Actor{ID: "eve", Role: model.RoleSupervisor}

	tests := []struct {
		name   string
		actor  model.Actor
		item   *model.WorkItem
		change Change
		reason Reason // "" means allowed
	}{
		{"owner edits anything", owner, sub, FieldChange(model.FieldName, model.FieldAssignees), ""},
		{"owner deletes", owner, main, DeleteChange, ""},
		{"member sets status", member, sub, FieldChange(model.FieldStatus), ""},
		{"supervisor sets status", supervisor, sub, FieldChange(model.FieldStatus), ""},
		{"member raises issue", member, sub, FieldChange(model.FieldIssues), ""},
		{"member adds attachment", member, sub, FieldChange(model.FieldAttachments), ""},
		{"member edits description", member, sub, FieldChange(model.FieldDescription), ReasonForbiddenField},
		{"member edits name", member, sub, FieldChange(model.FieldName), ReasonForbiddenField},
		{"member reassigns", member, sub, FieldChange(model.FieldAssignees), ReasonForbiddenField},
		{"status plus name", member, sub, FieldChange(model.FieldStatus, model.FieldName), ReasonForbiddenField},
		{"member on main task", member, main, FieldChange(model.FieldStatus), ReasonForbiddenField},
		{"member adds sub-task", member, main, FieldChange(model.FieldSubTasks), ReasonForbiddenField},
		{"viewer sets status", viewer, sub, FieldChange(model.FieldStatus), ReasonForbiddenField},
		{"outsider sets status", outsider, sub, FieldChange(model.FieldStatus), ReasonNotAssigned},
		{"assignee deletes", member, sub, DeleteChange, ReasonNotOwner},
		{"outsider deletes", outsider, sub, DeleteChange, ReasonNotOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Gate{}.CheckItem(tt.actor, tt.item, tt.change)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrAuthorization)
			assert.Equal(t, tt.reason, ReasonOf(err))
		})
	}
}

func TestGate_CheckIssue(t *testing.T) {
	issue := &model.Issue{ID: "is-1", OwnerID: "olivia", Assignees: []string{"max", "vera"}}

	tests := []struct {
		name   string
		actor  model.Actor
		change Change
		reason Reason
	}{
		{"owner closes", model.Actor{ID: "olivia"}, FieldChange(model.FieldStatus), ""},
		{"owner deletes", model.Actor{ID: "olivia"}, DeleteChange, ""},
		{"assignee closes", model.Actor{ID: "max", Role: model.RoleMember}, FieldChange(model.FieldStatus), ""},
		{"assignee renames", model.Actor{ID: "max", Role: model.RoleMember}, FieldChange(model.FieldName), ReasonForbiddenField},
		{"viewer closes", model.Actor{ID: "vera", Role: model.RoleViewer}, FieldChange(model.FieldStatus), ReasonForbiddenField},
		{"outsider closes", model.Actor{ID: "eve", Role: model.RoleSupervisor}, FieldChange(model.FieldStatus), ReasonNotAssigned},
		{"assignee deletes", model.Actor{ID: "max", Role: model.RoleMember}, DeleteChange, ReasonNotOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Gate{}.CheckIssue(tt.actor, issue, tt.change)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrAuthorization)
			assert.Equal(t, tt.reason, ReasonOf(err))
		})
	}
}

func TestGate_CheckProject(t *testing.T) {
	p := &model.Project{ID: "pj-1", OwnerID: "olivia"}

	assert.NoError(t, Gate{}.CheckProject(model.Actor{ID: "olivia"}, p))
	err := Gate{}.CheckProject(model.Actor{ID: "max", Role: model.RoleSupervisor}, p)
	assert.Equal(t, ReasonNotOwner, ReasonOf(err))
}
