package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baiirun/worklog/internal/model"
	"github.com/baiirun/worklog/internal/storage"
)

func TestCheckItemTransition(t *testing.T) {
	parent := "mt-1"
	sub := func(s model.Status) *model.WorkItem {
		return &model.WorkItem{ID: "st-1", ParentID: &parent, Kind: model.KindStandard, Status: s}
	}
	collection := func(s model.Status) *model.WorkItem {
		return &model.WorkItem{ID: "mt-2", Kind: model.KindCollection, Status: s}
	}
	standardMain := &model.WorkItem{ID: "mt-1", Kind: model.KindStandard, Status: model.StatusToDo}

	tests := []struct {
		name    string
		item    *model.WorkItem
		to      model.Status
		noop    bool
		wantErr bool
	}{
		{"start", sub(model.StatusToDo), model.StatusInProgress, false, false},
		{"finish", sub(model.StatusInProgress), model.StatusCompleted, false, false},
		{"skip to completed", sub(model.StatusToDo), model.StatusCompleted, false, false},
		{"reopen", sub(model.StatusCompleted), model.StatusInProgress, false, false},
		{"back to do", sub(model.StatusInProgress), model.StatusToDo, false, false},
		{"completed to do", sub(model.StatusCompleted), model.StatusToDo, false, true},
		{"same status", sub(model.StatusInProgress), model.StatusInProgress, true, false},
		{"invalid", sub(model.StatusToDo), model.Status("Blocked"), false, true},
		{"collection complete", collection(model.StatusToDo), model.StatusCompleted, false, false},
		{"collection reopen", collection(model.StatusCompleted), model.StatusToDo, false, false},
		{"collection in progress", collection(model.StatusToDo), model.StatusInProgress, false, true},
		{"derived main", standardMain, model.StatusCompleted, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			noop, err := CheckItemTransition(tt.item, tt.to)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPrecondition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.noop, noop)
		})
	}
}

func TestChangeStatus_RecordsEvent(t *testing.T) {
	f := newFixture(t)
	main := f.mainTask(t, "Foundation")
	sub := f.subTask(t, main, "Pour concrete")

	out, err := f.svc.ChangeStatus(f.ctx, f.owner, sub.ID, model.StatusInProgress)
	require.NoError(t, err)
	require.Len(t, out.Events, 1)
	assert.Empty(t, out.Warnings)
	assert.Equal(t, model.StatusInProgress, out.Item.Status)
	assert.Equal(t, model.StatusInProgress, f.status(t, sub.ID))

	events := f.events(t, sub.ID)
	last := events[len(events)-1]
	assert.Equal(t, model.EventStatusChanged, last.Kind)
	assert.Equal(t, "To Do", last.Detail["oldStatus"])
	assert.Equal(t, "In Progress", last.Detail["newStatus"])
	assert.Equal(t, "Olivia", last.AuthorName)
}

func TestChangeStatus_SameStatusIsNoop(t *testing.T) {
	f := newFixture(t)
	main := f.mainTask(t, "Foundation")
	sub := f.subTask(t, main, "Pour concrete")
	before := len(f.events(t, sub.ID))

	out, err := f.svc.ChangeStatus(f.ctx, f.owner, sub.ID, model.StatusToDo)
	require.NoError(t, err)
	assert.Empty(t, out.Events)
	assert.Len(t, f.events(t, sub.ID), before)
}

func TestChangeStatus_OpenIssueBlocksCompletion(t *testing.T) {
	f := newFixture(t)
	main := f.mainTask(t, "Foundation")
	sub := f.subTask(t, main, "Pour concrete")
	f.setStatus(t, sub, model.StatusInProgress)
	f.issue(t, sub, "Cracked formwork")
	before := f.events(t, sub.ID)

	_, err := f.svc.ChangeStatus(f.ctx, f.owner, sub.ID, model.StatusCompleted)
	require.ErrorIs(t, err, ErrPrecondition)
	assert.Contains(t, err.Error(), "open issues must be resolved first")

	assert.Equal(t, model.StatusInProgress, f.status(t, sub.ID))
	assert.Len(t, f.events(t, sub.ID), len(before))
}

func TestChangeStatus_ClosedIssuesAllowCompletion(t *testing.T) {
	f := newFixture(t)
	main := f.mainTask(t, "Foundation")
	sub := f.subTask(t, main, "Pour concrete")
	issue := f.issue(t, sub, "Cracked formwork")

	_, err := f.svc.SetIssueStatus(f.ctx, f.owner, issue.ID, model.IssueClosed)
	require.NoError(t, err)

	_, err = f.svc.ChangeStatus(f.ctx, f.owner, sub.ID, model.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, f.status(t, sub.ID))
}

func TestChangeStatus_StandardMainTaskIsDerived(t *testing.T) {
	f := newFixture(t)
	main := f.mainTask(t, "Foundation")

	_, err := f.svc.ChangeStatus(f.ctx, f.owner, main.ID, model.StatusCompleted)
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestChangeStatus_Collection(t *testing.T) {
	f := newFixture(t)
	c := f.collection(t, "Deposit", 250000, nil, nil)

	_, err := f.svc.ChangeStatus(f.ctx, f.owner, c.ID, model.StatusInProgress)
	assert.ErrorIs(t, err, ErrPrecondition)

	f.setStatus(t, c, model.StatusCompleted)
	assert.Equal(t, model.StatusCompleted, f.status(t, c.ID))

	// Only the owner may toggle it, even when assigned.
	_, err = f.svc.SetAssignees(f.ctx, f.owner, c.ID, []string{f.member.ID})
	require.NoError(t, err)
	_, err = f.svc.ChangeStatus(f.ctx, f.member, c.ID, model.StatusToDo)
	assert.Equal(t, ReasonForbiddenField, ReasonOf(err))

	f.setStatus(t, c, model.StatusToDo)
	assert.Equal(t, model.StatusToDo, f.status(t, c.ID))
}

func TestChangeStatus_Authorization(t *testing.T) {
	f := newFixture(t)
	main := f.mainTask(t, "Foundation")
	sub := f.subTask(t, main, "Pour concrete", f.member.ID, f.viewer.ID)

	_, err := f.svc.ChangeStatus(f.ctx, f.member, sub.ID, model.StatusInProgress)
	require.NoError(t, err)

	_, err = f.svc.ChangeStatus(f.ctx, f.viewer, sub.ID, model.StatusCompleted)
	assert.Equal(t, ReasonForbiddenField, ReasonOf(err))

	_, err = f.svc.ChangeStatus(f.ctx, f.outsider, sub.ID, model.StatusCompleted)
	assert.Equal(t, ReasonNotAssigned, ReasonOf(err))

	assert.Equal(t, model.StatusInProgress, f.status(t, sub.ID))
}

func TestChangeStatus_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ChangeStatus(f.ctx, f.owner, "st-missing", model.StatusCompleted)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChangeStatus_EventFailureIsWarning(t *testing.T) {
	var log *flakyLog
	f := newFixture(t, func(c *fixtureConfig) {
		c.events = func(ev storage.EventLog) storage.EventLog {
			log = &flakyLog{EventLog: ev}
			return log
		}
	})
	main := f.mainTask(t, "Foundation")
	sub := f.subTask(t, main, "Pour concrete")

	log.failAppend = true
	out, err := f.svc.ChangeStatus(f.ctx, f.owner, sub.ID, model.StatusInProgress)
	require.NoError(t, err)
	assert.Empty(t, out.Events)
	require.Len(t, out.Warnings, 1)
	assert.ErrorIs(t, out.Warnings[0].Err, errInjected)
	assert.Equal(t, model.StatusInProgress, f.status(t, sub.ID))
}

func TestCreateIssue_DemotesCompletedSubTask(t *testing.T) {
	f := newFixture(t)
	main := f.mainTask(t, "Foundation")
	sub := f.subTask(t, main, "Pour concrete")
	f.setStatus(t, sub, model.StatusCompleted)
	before := countKind(f.events(t, sub.ID), model.EventStatusChanged)

	out, err := f.svc.CreateIssue(f.ctx, f.owner, NewIssue{ItemID: sub.ID, Title: "Honeycombing", Severity: model.SeverityCritical})
	require.NoError(t, err)
	assert.Empty(t, out.Warnings)
	assert.Equal(t, model.IssueOpen, out.Issue.Status)

	assert.Equal(t, model.StatusInProgress, f.status(t, sub.ID))
	events := f.events(t, sub.ID)
	assert.Equal(t, before+1, countKind(events, model.EventStatusChanged))

	last := events[len(events)-1]
	assert.Equal(t, model.EventStatusChanged, last.Kind)
	assert.Equal(t, true, last.Detail["automatic"])
	assert.Equal(t, out.Issue.ID, last.Detail["issueId"])
	assert.Equal(t, model.EventIssueCreated, events[len(events)-2].Kind)
}

func TestCreateIssue_OpenSubTaskUntouched(t *testing.T) {
	f := newFixture(t)
	main := f.mainTask(t, "Foundation")
	sub := f.subTask(t, main, "Pour concrete")
	f.setStatus(t, sub, model.StatusInProgress)
	before := countKind(f.events(t, sub.ID), model.EventStatusChanged)

	f.issue(t, sub, "Honeycombing")

	assert.Equal(t, model.StatusInProgress, f.status(t, sub.ID))
	assert.Equal(t, before, countKind(f.events(t, sub.ID), model.EventStatusChanged))
}

func TestReopenIssue_DemotesCompletedSubTask(t *testing.T) {
	f := newFixture(t)
	main := f.mainTask(t, "Foundation")
	sub := f.subTask(t, main, "Pour concrete")
	issue := f.issue(t, sub, "Honeycombing")

	_, err := f.svc.SetIssueStatus(f.ctx, f.owner, issue.ID, model.IssueClosed)
	require.NoError(t, err)
	f.setStatus(t, sub, model.StatusCompleted)

	out, err := f.svc.SetIssueStatus(f.ctx, f.owner, issue.ID, model.IssueOpen)
	require.NoError(t, err)
	assert.Empty(t, out.Warnings)
	assert.Len(t, out.Events, 2)
	assert.Equal(t, model.StatusInProgress, f.status(t, sub.ID))

	events := f.events(t, sub.ID)
	reopen := events[len(events)-2]
	demote := events[len(events)-1]
	assert.Equal(t, model.EventIssueStatusChanged, reopen.Kind)
	assert.Equal(t, "Open", reopen.Detail["newStatus"])
	assert.Equal(t, model.EventStatusChanged, demote.Kind)
	assert.Equal(t, "Completed", demote.Detail["oldStatus"])
	assert.Equal(t, "In Progress", demote.Detail["newStatus"])
	assert.True(t, reopen.Before(demote))
}

func TestReopenIssue_CascadeFailureIsWarning(t *testing.T) {
	var store *flakyStore
	f := newFixture(t, func(c *fixtureConfig) {
		c.store = func(s storage.Store) storage.Store {
			store = &flakyStore{Store: s}
			return store
		}
	})
	main := f.mainTask(t, "Foundation")
	sub := f.subTask(t, main, "Pour concrete")
	issue := f.issue(t, sub, "Honeycombing")
	_, err := f.svc.SetIssueStatus(f.ctx, f.owner, issue.ID, model.IssueClosed)
	require.NoError(t, err)
	f.setStatus(t, sub, model.StatusCompleted)

	store.failStatus = true
	out, err := f.svc.SetIssueStatus(f.ctx, f.owner, issue.ID, model.IssueOpen)
	require.NoError(t, err)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, "cascade", out.Warnings[0].Op)

	got, err := f.db.GetIssue(f.ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IssueOpen, got.Status)
	assert.Equal(t, model.StatusCompleted, f.status(t, sub.ID))
}

func TestMachine_CustomHook(t *testing.T) {
	f := newFixture(t)
	main := f.mainTask(t, "Foundation")
	sub := f.subTask(t, main, "Pour concrete")

	var seen []Transition
	f.svc.Machine().Use(func(_ context.Context, _ *Machine, tr Transition, _ *Outcome) error {
		seen = append(seen, tr)
		return nil
	})

	f.setStatus(t, sub, model.StatusInProgress)
	require.Len(t, seen, 1)
	assert.Equal(t, sub.ID, seen[0].ItemID)
	assert.Equal(t, "To Do", seen[0].From)
	assert.Equal(t, "In Progress", seen[0].To)
	assert.Nil(t, seen[0].Issue)
}
