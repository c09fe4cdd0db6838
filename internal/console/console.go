package console

import (
	"context"
	"errors"
	"io"
	"sync"

	"finetune-console/internal/client"
	"finetune-console/internal/dataset"
	"finetune-console/internal/tasks"

	"golang.org/x/sync/singleflight"
)

// Remote is the subset of the fine-tuning API the console drives.
type Remote interface {
	UploadFile(ctx context.Context, role, name string, body io.Reader) (client.File, error)
	ListFiles(ctx context.Context, limit, offset int) ([]client.File, error)
	DeleteFile(ctx context.Context, fileId int64) error

	CreateDatasetConfig(ctx context.Context, config client.DatasetConfigRequest) (int64, error)

	CreateTask(ctx context.Context, task client.CreateTaskRequest) (client.RemoteTask, error)
	ListTasks(ctx context.Context, limit, offset int) ([]client.TaskEntry, error)
	StartTask(ctx context.Context, taskId int64) error
	StopTask(ctx context.Context, taskId int64) error
	DeleteTask(ctx context.Context, taskId int64) error
	TaskLogs(ctx context.Context, taskId int64, limit, offset int) ([]client.LogEntry, error)

	Balance(ctx context.Context) (float64, error)
	ListTransactions(ctx context.Context, limit, offset int) ([]client.Transaction, error)

	ListBaseModels(ctx context.Context) ([]client.BaseModel, error)
}

var _ Remote = (*client.Client)(nil)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrInvalidRole  = errors.New("invalid file role")
)

// RequestError is a create-task form rule violation detected before any
// remote call is made.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

type Console struct {
	remote    Remote
	pipeline  *dataset.Pipeline
	admission *tasks.AdmissionController
	balance   *BalanceCache

	taskFetches singleflight.Group

	statusMu   sync.Mutex
	lastStatus map[int64]tasks.Status
}

func New(remote Remote, pipeline *dataset.Pipeline, admission *tasks.AdmissionController) *Console {
	return &Console{
		remote:     remote,
		pipeline:   pipeline,
		admission:  admission,
		balance:    NewBalanceCache(remote.Balance, DefaultBalanceTTL),
		lastStatus: make(map[int64]tasks.Status),
	}
}

func (c *Console) Pipeline() *dataset.Pipeline {
	return c.pipeline
}

func (c *Console) Admission() *tasks.AdmissionController {
	return c.admission
}

type BalanceView struct {
	Dollars *float64
	Label   string
}

// Balance returns the cached balance snapshot, refreshing it if stale.
func (c *Console) Balance(ctx context.Context) BalanceView {
	dollars := c.balance.Get(ctx)
	return BalanceView{Dollars: dollars, Label: c.balance.Label()}
}

func (c *Console) RefreshBalance(ctx context.Context) BalanceView {
	dollars, _ := c.balance.Refresh(ctx)
	return BalanceView{Dollars: dollars, Label: c.balance.Label()}
}

func (c *Console) Transactions(ctx context.Context, page int) ([]client.Transaction, error) {
	return c.remote.ListTransactions(ctx, client.TransactionsPageSize, max(page, 0)*client.TransactionsPageSize)
}

func (c *Console) BaseModels(ctx context.Context) ([]client.BaseModel, error) {
	return c.remote.ListBaseModels(ctx)
}

// DefaultBaseModel prefers model 1 and otherwise the first listed model.
func DefaultBaseModel(models []client.BaseModel) (client.BaseModel, bool) {
	if len(models) == 0 {
		return client.BaseModel{}, false
	}
	for _, m := range models {
		if m.Id == 1 {
			return m, true
		}
	}
	return models[0], true
}
