package engine

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/baiirun/worklog/internal/model"
)

// AggregateForWorkItem returns a main task's history, newest first. The
// task's own events appear individually; each sub-task with history appears
// as one group stamped with its latest event. A sub-task whose log cannot be
// read is logged and left out, unless the request deadline ran out, which
// fails the whole call.
func (s *Service) AggregateForWorkItem(ctx context.Context, mainTaskID string) (entries []model.AggregatedEvent, err error) {
	ctx, end := s.begin(ctx, "AggregateForWorkItem", attribute.String("item", mainTaskID))
	defer end(&err)

	item, err := s.getItem(ctx, "aggregate", mainTaskID)
	if err != nil {
		return nil, err
	}
	return s.aggregateTask(ctx, item)
}

func (s *Service) aggregateTask(ctx context.Context, item *model.WorkItem) ([]model.AggregatedEvent, error) {
	const op = "aggregate"
	own, err := s.events.ListEvents(ctx, item.ID)
	if err != nil {
		return nil, fromStore(op, err)
	}
	children, err := s.store.ListChildren(ctx, item.ID)
	if err != nil {
		return nil, fromStore(op, err)
	}

	entries := make([]model.AggregatedEvent, 0, len(own)+len(children))
	for i := range own {
		e := own[i]
		entries = append(entries, model.AggregatedEvent{Event: &e, At: e.CreatedAt})
	}

	logs := fanOut(ctx, s.opts.FanOut, children, func(ctx context.Context, c model.WorkItem) ([]model.TimelineEvent, error) {
		return s.events.ListEvents(ctx, c.ID)
	})
	if err := ctx.Err(); err != nil {
		return nil, fromStore(op, err)
	}
	for i, r := range logs {
		child := children[i]
		if r.Err != nil {
			s.logger.Warn("sub-task history omitted", "item", item.ID, "subtask", child.ID, "error", r.Err)
			continue
		}
		if len(r.Value) == 0 {
			continue
		}
		events := r.Value
		model.SortEventsDesc(events)
		entries = append(entries, model.AggregatedEvent{
			Group: &model.EventGroup{ItemID: child.ID, ItemName: child.Name, Events: events},
			At:    events[0].CreatedAt,
		})
	}

	model.SortAggregatedDesc(entries)
	return entries, nil
}

// AggregateForProject returns one timeline per main task, ordered by each
// task's latest activity. A task with no history sorts by its creation time.
// Tasks whose timeline cannot be built are logged and left out; an expired
// deadline fails the call instead.
func (s *Service) AggregateForProject(ctx context.Context, projectID string) (timelines []model.TaskTimeline, err error) {
	const op = "aggregate project"
	ctx, end := s.begin(ctx, "AggregateForProject", attribute.String("project", projectID))
	defer end(&err)

	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, fromStore(op, err)
	}
	tasks, err := s.store.ListMainTasks(ctx, projectID)
	if err != nil {
		return nil, fromStore(op, err)
	}

	results := fanOut(ctx, s.opts.FanOut, tasks, func(ctx context.Context, t model.WorkItem) ([]model.AggregatedEvent, error) {
		return s.aggregateTask(ctx, &t)
	})
	if err := ctx.Err(); err != nil {
		return nil, fromStore(op, err)
	}

	timelines = make([]model.TaskTimeline, 0, len(tasks))
	for i, r := range results {
		task := tasks[i]
		if r.Err != nil {
			s.logger.Warn("task timeline omitted", "project", projectID, "item", task.ID, "error", r.Err)
			continue
		}
		latest := task.CreatedAt
		if len(r.Value) > 0 {
			latest = r.Value[0].At
		}
		timelines = append(timelines, model.TaskTimeline{Task: task, Entries: r.Value, LatestAt: latest})
	}

	sort.SliceStable(timelines, func(i, j int) bool {
		if !timelines[i].LatestAt.Equal(timelines[j].LatestAt) {
			return timelines[i].LatestAt.After(timelines[j].LatestAt)
		}
		return timelines[i].Task.ID > timelines[j].Task.ID
	})
	return timelines, nil
}
