package engine

import (
	"context"
	"math"

	"go.opentelemetry.io/otel/attribute"

	"github.com/baiirun/worklog/internal/model"
)

// Progress is a main task's completion, always computed from current child
// state. Derived is false for collection tasks, whose values are owner-set.
type Progress struct {
	Percent   int          `json:"percent" yaml:"percent"`
	Status    model.Status `json:"status" yaml:"status"`
	Completed int          `json:"completed" yaml:"completed"`
	Total     int          `json:"total" yaml:"total"`
	Derived   bool         `json:"derived" yaml:"derived"`
}

// DeriveProgress computes progress from sub-tasks. It is pure: the same
// children always give the same answer.
//
// The status is Completed exactly when the rounded percent is 100, so the two
// fields never disagree. With 199 of 200 sub-tasks done that means Completed.
func DeriveProgress(children []model.WorkItem) Progress {
	p := Progress{Status: model.StatusToDo, Total: len(children), Derived: true}
	if len(children) == 0 {
		return p
	}

	started := false
	for _, c := range children {
		switch c.Status {
		case model.StatusCompleted:
			p.Completed++
		case model.StatusInProgress:
			started = true
		}
	}
	p.Percent = int(math.Round(100 * float64(p.Completed) / float64(p.Total)))

	switch {
	case p.Percent == 100:
		p.Status = model.StatusCompleted
	case p.Percent > 0 || started:
		p.Status = model.StatusInProgress
	}
	return p
}

// collectionProgress reflects the owner-set status of a collection task.
func collectionProgress(item *model.WorkItem) Progress {
	p := Progress{Status: item.Status}
	if item.Status == model.StatusCompleted {
		p.Percent = 100
	}
	return p
}

// ComputeProgress returns a main task's progress. Nothing is written back.
func (s *Service) ComputeProgress(ctx context.Context, mainTaskID string) (p Progress, err error) {
	const op = "compute progress"
	ctx, end := s.begin(ctx, "ComputeProgress", attribute.String("item", mainTaskID))
	defer end(&err)

	item, err := s.getItem(ctx, op, mainTaskID)
	if err != nil {
		return Progress{}, err
	}
	return s.progressOf(ctx, op, item)
}

func (s *Service) progressOf(ctx context.Context, op string, item *model.WorkItem) (Progress, error) {
	if item.IsSubTask() {
		return Progress{}, withOp(op, precondition("%s is a sub-task; progress is defined for main tasks", item.ID))
	}
	if item.IsCollection() {
		return collectionProgress(item), nil
	}
	children, err := s.store.ListChildren(ctx, item.ID)
	if err != nil {
		return Progress{}, fromStore(op, err)
	}
	return DeriveProgress(children), nil
}

// TaskProgress pairs a main task with its progress.
type TaskProgress struct {
	Task     model.WorkItem `json:"task" yaml:"task"`
	Progress Progress       `json:"progress" yaml:"progress"`
}

// ProjectProgress is the mean of a project's standard main tasks.
type ProjectProgress struct {
	ProjectID string         `json:"project_id" yaml:"project_id"`
	Percent   int            `json:"percent" yaml:"percent"`
	Tasks     []TaskProgress `json:"tasks" yaml:"tasks"`
	// Omitted lists main tasks whose sub-tasks could not be read.
	Omitted []string `json:"omitted,omitempty" yaml:"omitted,omitempty"`
}

// ProjectProgress averages the percentages of the project's standard main
// tasks; collection tasks are listed but excluded from the mean. Main tasks
// whose children cannot be read are logged and omitted. The call fails when
// every standard main task failed or the request deadline ran out.
func (s *Service) ProjectProgress(ctx context.Context, projectID string) (pp ProjectProgress, err error) {
	const op = "project progress"
	ctx, end := s.begin(ctx, "ProjectProgress", attribute.String("project", projectID))
	defer end(&err)

	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return ProjectProgress{}, fromStore(op, err)
	}
	tasks, err := s.store.ListMainTasks(ctx, projectID)
	if err != nil {
		return ProjectProgress{}, fromStore(op, err)
	}

	results := fanOut(ctx, s.opts.FanOut, tasks, func(ctx context.Context, t model.WorkItem) (Progress, error) {
		return s.progressOf(ctx, op, &t)
	})
	if err := ctx.Err(); err != nil {
		return ProjectProgress{}, fromStore(op, err)
	}

	pp = ProjectProgress{ProjectID: projectID}
	var sum, standard, failed int
	var lastErr error
	for i, r := range results {
		task := tasks[i]
		if r.Err != nil {
			s.logger.Warn("progress omitted", "project", projectID, "item", task.ID, "error", r.Err)
			pp.Omitted = append(pp.Omitted, task.ID)
			failed++
			lastErr = r.Err
			continue
		}
		if task.IsCollection() {
			pp.Tasks = append(pp.Tasks, TaskProgress{Task: task, Progress: r.Value})
			continue
		}
		task.Status = r.Value.Status
		pp.Tasks = append(pp.Tasks, TaskProgress{Task: task, Progress: r.Value})
		sum += r.Value.Percent
		standard++
	}

	if standard == 0 && failed > 0 {
		return ProjectProgress{}, fromStore(op, lastErr)
	}
	if standard > 0 {
		pp.Percent = int(math.Round(float64(sum) / float64(standard)))
	}
	return pp, nil
}
