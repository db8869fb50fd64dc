package model

type Role string

const (
	RoleSupervisor Role = "supervisor"
	RoleMember     Role = "member"
	RoleViewer     Role = "viewer"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleSupervisor, RoleMember, RoleViewer:
		return true
	}
	return false
}

// CanChangeStatus reports whether an assignee holding this role may move an
// item's status.
func (r Role) CanChangeStatus() bool {
	return r == RoleSupervisor || r == RoleMember
}

// Actor is the authenticated caller. The engine never authenticates; it only
// authorizes using the id and role it is handed.
type Actor struct {
	ID   string
	Role Role
}

// Field names a mutable part of a work item or issue.
type Field string

const (
	FieldStatus      Field = "status"
	FieldName        Field = "name"
	FieldDescription Field = "description"
	FieldAssignees   Field = "assignees"
	FieldDueDate     Field = "due_date"
	FieldAmount      Field = "amount"
	FieldSubTasks    Field = "sub_tasks"
	FieldIssues      Field = "issues"
	FieldAttachments Field = "attachments"
)
