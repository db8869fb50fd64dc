package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baiirun/worklog/internal/model"
)

type memLog struct {
	events []model.TimelineEvent
	err    error
}

func (l *memLog) AppendEvent(_ context.Context, e *model.TimelineEvent) error {
	if l.err != nil {
		return l.err
	}
	l.events = append(l.events, *e)
	return nil
}

func (l *memLog) ListEvents(_ context.Context, itemID string) ([]model.TimelineEvent, error) {
	var out []model.TimelineEvent
	for _, e := range l.events {
		if e.ItemID == itemID {
			out = append(out, e)
		}
	}
	return out, nil
}

type nameMap struct {
	names map[string]string
	err   error
}

func (n nameMap) DisplayName(_ context.Context, id string) (string, error) {
	return n.names[id], n.err
}

func TestRecorder_Record(t *testing.T) {
	log := &memLog{}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := NewRecorder(log, nameMap{names: map[string]string{"olivia": "Olivia"}}, nil, func() time.Time { return at })

	id, err := r.Record(context.Background(), "st-1", "olivia", model.EventStatusChanged, map[string]any{"newStatus": "Completed"})
	require.NoError(t, err)
	require.Len(t, log.events, 1)

	e := log.events[0]
	assert.Equal(t, id, e.ID)
	assert.Equal(t, "st-1", e.ItemID)
	assert.Equal(t, "olivia", e.AuthorID)
	assert.Equal(t, "Olivia", e.AuthorName)
	assert.Equal(t, at, e.CreatedAt)
	assert.Equal(t, "Completed", e.Detail["newStatus"])
}

func TestRecorder_SystemFallback(t *testing.T) {
	tests := []struct {
		name    string
		actorID string
		names   nameMap
	}{
		{"unknown actor", "ghost", nameMap{}},
		{"resolver error", "olivia", nameMap{names: map[string]string{"olivia": "Olivia"}, err: errors.New("timeout")}},
		{"no actor", "", nameMap{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &memLog{}
			r := NewRecorder(log, tt.names, nil, nil)

			_, err := r.Record(context.Background(), "st-1", tt.actorID, model.EventItemCreated, nil)
			require.NoError(t, err)
			assert.Equal(t, model.SystemAuthor, log.events[0].AuthorName)
		})
	}
}

func TestRecorder_NilResolver(t *testing.T) {
	log := &memLog{}
	r := NewRecorder(log, nil, nil, nil)

	_, err := r.Record(context.Background(), "st-1", "olivia", model.EventItemCreated, nil)
	require.NoError(t, err)
	assert.Equal(t, model.SystemAuthor, log.events[0].AuthorName)
}

func TestRecorder_AppendFailure(t *testing.T) {
	log := &memLog{err: errors.New("disk full")}
	r := NewRecorder(log, nil, nil, nil)

	_, err := r.Record(context.Background(), "st-1", "olivia", model.EventItemCreated, nil)
	assert.ErrorIs(t, err, ErrDependency)
}

func TestRecorder_NameCapturedAtWriteTime(t *testing.T) {
	f := newFixture(t)
	main := f.mainTask(t, "Siding")

	require.NoError(t, f.db.UpsertUser(f.ctx, "olivia", "Olivia R."))
	_, err := f.svc.UpdateItem(f.ctx, f.owner, main.ID, model.ItemUpdate{Name: ptr("Siding and trim")})
	require.NoError(t, err)

	events := f.events(t, main.ID)
	require.Len(t, events, 2)
	assert.Equal(t, "Olivia", events[0].AuthorName)
	assert.Equal(t, "Olivia R.", events[1].AuthorName)
}
