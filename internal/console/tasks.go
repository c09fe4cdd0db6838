package console

import (
	"context"
	"fmt"
	"log/slog"

	"finetune-console/internal/client"
	"finetune-console/internal/tasks"
)

const taskLookupPageSize = 100

// TaskView is a remote task entry with the console's derived state.
type TaskView struct {
	Task         tasks.Task
	BaseModel    client.BaseModel
	RawStatus    string
	CreatedAt    string
	Actions      []tasks.Action
	ExpectedCost float64
	CanStart     bool
	// StartBlocked explains why start is not offered when the status would
	// otherwise allow it.
	StartBlocked string
	GGUF         *client.File
}

func toTask(entry client.TaskEntry) tasks.Task {
	return tasks.Task{
		Id:                entry.Task.ID(),
		Status:            tasks.NormalizeStatus(entry.Status()),
		ProjectName:       entry.Task.ProjectName,
		BaseModelId:       entry.BaseModelId(),
		BaseModelName:     entry.BaseModel.Name(),
		DatasetConfigId:   entry.Task.DatasetConfigId,
		Epochs:            int(entry.Task.Epochs),
		PrimaryGGUFFileId: primaryGGUFId(entry.Task),
	}
}

func primaryGGUFId(t client.RemoteTask) *int64 {
	if t.PrimaryGGUFFileId != nil {
		return t.PrimaryGGUFFileId
	}
	return t.GGUFFileId
}

func ggufForTask(t client.RemoteTask, gguf map[int64]client.File) *client.File {
	if t.PrimaryGGUFFile != nil && t.PrimaryGGUFFile.IsGGUF() {
		return t.PrimaryGGUFFile
	}
	if id := primaryGGUFId(t); id != nil {
		if f, ok := gguf[*id]; ok {
			return &f
		}
	}
	return nil
}

func (c *Console) decorate(entry client.TaskEntry, balance *float64, gguf map[int64]client.File) TaskView {
	task := toTask(entry)
	view := TaskView{
		Task:         task,
		BaseModel:    entry.BaseModel,
		RawStatus:    entry.Status(),
		CreatedAt:    entry.Task.CreatedAt,
		Actions:      tasks.AllowedActions(task.Status),
		ExpectedCost: c.admission.ExpectedCost(task),
		GGUF:         ggufForTask(entry.Task, gguf),
	}

	if tasks.Permits(task.Status, tasks.ActionStart) {
		if err := c.admission.Admit(task, balance); err != nil {
			view.StartBlocked = err.Error()
		} else {
			view.CanStart = true
		}
	}
	return view
}

func (c *Console) trackStatus(task tasks.Task) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()

	if prev, ok := c.lastStatus[task.Id]; ok && !tasks.CanTransition(prev, task.Status) {
		slog.Warn("unexpected task status change", "task_id", task.Id, "from", prev, "to", task.Status)
	}
	c.lastStatus[task.Id] = task.Status
}

func (c *Console) fetchTasks(ctx context.Context, limit, offset int) ([]client.TaskEntry, error) {
	key := fmt.Sprintf("%d:%d", limit, offset)
	v, err, _ := c.taskFetches.Do(key, func() (any, error) {
		return c.remote.ListTasks(ctx, limit, offset)
	})
	if err != nil {
		return nil, err
	}
	return v.([]client.TaskEntry), nil
}

// ListTasks returns one page of tasks decorated with the actions the console
// may offer for each.
func (c *Console) ListTasks(ctx context.Context, page int) ([]TaskView, error) {
	entries, err := c.fetchTasks(ctx, client.TasksPageSize, max(page, 0)*client.TasksPageSize)
	if err != nil {
		return nil, err
	}

	balance := c.balance.Get(ctx)
	gguf := c.ggufFiles(ctx)

	views := make([]TaskView, 0, len(entries))
	for _, entry := range entries {
		view := c.decorate(entry, balance, gguf)
		c.trackStatus(view.Task)
		views = append(views, view)
	}
	return views, nil
}

// FindTask pages through the task list until it finds taskId.
func (c *Console) FindTask(ctx context.Context, taskId int64) (TaskView, error) {
	for offset := 0; ; offset += taskLookupPageSize {
		entries, err := c.fetchTasks(ctx, taskLookupPageSize, offset)
		if err != nil {
			return TaskView{}, err
		}
		for _, entry := range entries {
			if entry.Task.ID() == taskId {
				view := c.decorate(entry, c.balance.Get(ctx), nil)
				c.trackStatus(view.Task)
				return view, nil
			}
		}
		if len(entries) < taskLookupPageSize {
			return TaskView{}, fmt.Errorf("%w: %d", ErrTaskNotFound, taskId)
		}
	}
}

// StartTask applies the lifecycle policy and balance admission, and only
// then asks the remote API to start the task.
func (c *Console) StartTask(ctx context.Context, taskId int64) error {
	view, err := c.FindTask(ctx, taskId)
	if err != nil {
		return err
	}

	if err := c.admission.CheckStart(view.Task, c.balance.Get(ctx)); err != nil {
		slog.Info("task start refused", "task_id", taskId, "status", view.Task.Status, "error", err)
		return err
	}

	if err := c.remote.StartTask(ctx, taskId); err != nil {
		return err
	}
	c.balance.Invalidate()

	slog.Info("task started", "task_id", taskId, "expected_cost", view.ExpectedCost)
	return nil
}

func (c *Console) StopTask(ctx context.Context, taskId int64) error {
	return c.gatedAction(ctx, taskId, tasks.ActionStop, c.remote.StopTask)
}

func (c *Console) DeleteTask(ctx context.Context, taskId int64) error {
	return c.gatedAction(ctx, taskId, tasks.ActionDelete, c.remote.DeleteTask)
}

func (c *Console) gatedAction(ctx context.Context, taskId int64, action tasks.Action, call func(context.Context, int64) error) error {
	view, err := c.FindTask(ctx, taskId)
	if err != nil {
		return err
	}

	if err := tasks.Check(view.Task.Status, action); err != nil {
		slog.Info("task action refused", "task_id", taskId, "action", action, "status", view.Task.Status)
		return err
	}

	if err := call(ctx, taskId); err != nil {
		return err
	}

	slog.Info("task action completed", "task_id", taskId, "action", action)
	return nil
}

func (c *Console) TaskLogs(ctx context.Context, taskId int64, page int) ([]client.LogEntry, error) {
	return c.remote.TaskLogs(ctx, taskId, client.LogsPageSize, max(page, 0)*client.LogsPageSize)
}
