package console

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"finetune-console/internal/client"
	"finetune-console/internal/dataset"
	"finetune-console/internal/split"
	"finetune-console/internal/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upload struct {
	role, name, content string
}

type fakeRemote struct {
	mu sync.Mutex

	uploads       []upload
	deletedFiles  []int64
	configs       []client.DatasetConfigRequest
	createdTasks  []client.CreateTaskRequest
	actions       []string
	files         []client.File
	entries       []client.TaskEntry
	balance       float64
	balanceErr    error
	balanceCalls  atomic.Int32
	deleteFileErr error
}

func (f *fakeRemote) UploadFile(ctx context.Context, role, name string, body io.Reader) (client.File, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return client.File{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, upload{role: role, name: name, content: string(data)})
	return client.File{Id: int64(100 + len(f.uploads)), OriginalName: name, FileType: role}, nil
}

func (f *fakeRemote) ListFiles(ctx context.Context, limit, offset int) ([]client.File, error) {
	return f.files, nil
}

func (f *fakeRemote) DeleteFile(ctx context.Context, fileId int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedFiles = append(f.deletedFiles, fileId)
	return f.deleteFileErr
}

func (f *fakeRemote) CreateDatasetConfig(ctx context.Context, config client.DatasetConfigRequest) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, config)
	return 55, nil
}

func (f *fakeRemote) CreateTask(ctx context.Context, task client.CreateTaskRequest) (client.RemoteTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdTasks = append(f.createdTasks, task)
	return client.RemoteTask{Id: 9, Status: "draft", ProjectName: task.ProjectName}, nil
}

func (f *fakeRemote) ListTasks(ctx context.Context, limit, offset int) ([]client.TaskEntry, error) {
	if offset >= len(f.entries) {
		return nil, nil
	}
	return f.entries[offset:min(offset+limit, len(f.entries))], nil
}

func (f *fakeRemote) record(action string, taskId int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeRemote) StartTask(ctx context.Context, taskId int64) error {
	return f.record("start", taskId)
}

func (f *fakeRemote) StopTask(ctx context.Context, taskId int64) error {
	return f.record("stop", taskId)
}

func (f *fakeRemote) DeleteTask(ctx context.Context, taskId int64) error {
	return f.record("delete", taskId)
}

func (f *fakeRemote) TaskLogs(ctx context.Context, taskId int64, limit, offset int) ([]client.LogEntry, error) {
	return []client.LogEntry{{Message: "hello"}}, nil
}

func (f *fakeRemote) Balance(ctx context.Context) (float64, error) {
	f.balanceCalls.Add(1)
	return f.balance, f.balanceErr
}

func (f *fakeRemote) ListTransactions(ctx context.Context, limit, offset int) ([]client.Transaction, error) {
	return nil, nil
}

func (f *fakeRemote) ListBaseModels(ctx context.Context) ([]client.BaseModel, error) {
	return []client.BaseModel{{Id: 3}, {Id: 1, ModelName: "gemma-3-270m"}}, nil
}

const (
	goodLine = `{"messages":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`
	badLine  = `{"messages":[{"role":"assistant","content":"hi"}]}`
)

func newTestConsole(remote *fakeRemote) *Console {
	pricing := tasks.Pricing{DefaultCostPerEpoch: 2}
	return New(remote, dataset.DefaultPipeline(), tasks.NewAdmissionController(pricing))
}

func taskEntry(id int64, status string, epochs float64) client.TaskEntry {
	return client.TaskEntry{
		Task:      client.RemoteTask{Id: id, Status: status, Epochs: epochs, BaseModelId: 3},
		BaseModel: client.BaseModel{Id: 3, ModelName: "llama"},
	}
}

func TestValidateAndUploadRejectsInvalidDataset(t *testing.T) {
	remote := &fakeRemote{}
	c := newTestConsole(remote)

	_, err := c.ValidateAndUpload(context.Background(), client.RoleTrain, "data.jsonl", dataset.BytesBlob(goodLine+"\n"+badLine+"\n"))
	var verr *dataset.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 2, verr.Line)
	assert.Empty(t, remote.uploads)

	_, err = c.ValidateAndUpload(context.Background(), client.RoleTrain, "data.csv", dataset.BytesBlob(goodLine))
	kind, ok := dataset.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, dataset.SizeOrTypeError, kind)

	_, err = c.ValidateAndUpload(context.Background(), client.RoleGGUF, "data.jsonl", dataset.BytesBlob(goodLine))
	assert.ErrorIs(t, err, ErrInvalidRole)
	assert.Empty(t, remote.uploads)
}

func TestValidateAndUpload(t *testing.T) {
	remote := &fakeRemote{}
	c := newTestConsole(remote)

	content := goodLine + "\n\n" + goodLine
	file, err := c.ValidateAndUpload(context.Background(), client.RoleValidation, "val.jsonl", dataset.BytesBlob(content))
	require.NoError(t, err)
	assert.Equal(t, int64(101), file.ID())
	assert.Equal(t, []upload{{role: "validation", name: "val.jsonl", content: content}}, remote.uploads)
}

func TestReplaceFile(t *testing.T) {
	remote := &fakeRemote{deleteFileErr: errors.New("gone")}
	c := newTestConsole(remote)

	file, err := c.ReplaceFile(context.Background(), 7, client.RoleTrain, "new.jsonl", dataset.BytesBlob(goodLine))
	require.NoError(t, err, "delete of the old file is best effort")
	assert.Equal(t, "new.jsonl", file.OriginalName)
	assert.Equal(t, []int64{7}, remote.deletedFiles)

	_, err = c.ReplaceFile(context.Background(), 8, client.RoleTrain, "new.jsonl", dataset.BytesBlob(badLine))
	assert.Error(t, err)
	assert.Equal(t, []int64{7}, remote.deletedFiles, "old file is kept when the replacement is invalid")
}

func TestCreateTaskSingleSplit(t *testing.T) {
	remote := &fakeRemote{}
	c := newTestConsole(remote)

	created, err := c.CreateTask(context.Background(), CreateTaskRequest{
		ProjectName: "  support bot ",
		BaseModelId: 1,
		Source:      client.SourceSingleSplit,
		Split:       split.Config{Train: 70, Validation: 20, Benchmark: 10},
		RawFile:     &Upload{Name: "all.jsonl", Blob: dataset.BytesBlob(goodLine)},
	})
	require.NoError(t, err)

	require.Len(t, remote.uploads, 1)
	assert.Equal(t, client.RoleTrain, remote.uploads[0].role)

	require.Len(t, remote.configs, 1)
	assert.Equal(t, client.DatasetConfigRequest{
		Name:               "support bot",
		Description:        DefaultDatasetDescription,
		SourceType:         client.SourceSingleSplit,
		SplitTrainPct:      70,
		SplitValidationPct: 20,
		SplitBenchmarkPct:  10,
		Files:              []client.FileMapping{{FileId: 101, SplitRole: client.RoleRaw, Position: 0}},
	}, remote.configs[0])

	require.Len(t, remote.createdTasks, 1)
	assert.Equal(t, int64(55), remote.createdTasks[0].DatasetConfigId)
	assert.Equal(t, "support bot", remote.createdTasks[0].ProjectName)
	assert.Equal(t, tasks.DefaultHyperparameters(), remote.createdTasks[0].Hyperparameters)

	assert.Equal(t, int64(9), created.Task.ID())
	assert.Equal(t, int64(55), created.DatasetConfigId)
	require.NotNil(t, created.UploadedFile)
	assert.Equal(t, int64(101), created.UploadedFile.ID())
}

func TestCreateTaskExplicitFiles(t *testing.T) {
	remote := &fakeRemote{}
	c := newTestConsole(remote)

	hp := tasks.DefaultHyperparameters()
	hp.Epochs = 3
	_, err := c.CreateTask(context.Background(), CreateTaskRequest{
		ProjectName:       "proj",
		BaseModelId:       2,
		Source:            client.SourceExplicitFiles,
		Split:             split.Default(),
		TrainFileIds:      []int64{1, 2},
		ValidationFileIds: []int64{3},
		BenchmarkFileIds:  []int64{4},
		Hyperparameters:   hp,
	})
	require.NoError(t, err)

	assert.Empty(t, remote.uploads)
	require.Len(t, remote.configs, 1)
	assert.Equal(t, []client.FileMapping{
		{FileId: 1, SplitRole: client.RoleTrain, Position: 0},
		{FileId: 2, SplitRole: client.RoleTrain, Position: 1},
		{FileId: 3, SplitRole: client.RoleValidation, Position: 0},
		{FileId: 4, SplitRole: client.RoleBenchmark, Position: 0},
	}, remote.configs[0].Files)
	assert.Equal(t, 3, remote.createdTasks[0].Epochs)
}

func TestCreateTaskRules(t *testing.T) {
	raw := &Upload{Name: "all.jsonl", Blob: dataset.BytesBlob(goodLine)}

	for _, tc := range []struct {
		req     CreateTaskRequest
		message string
	}{
		{
			req:     CreateTaskRequest{ProjectName: " ", BaseModelId: 1, Source: client.SourceSingleSplit, Split: split.Default(), RawFile: raw},
			message: "Project name is required.",
		},
		{
			req:     CreateTaskRequest{ProjectName: "p", Source: client.SourceSingleSplit, Split: split.Default(), RawFile: raw},
			message: "Base model ID is required.",
		},
		{
			req:     CreateTaskRequest{ProjectName: "p", BaseModelId: 1, Source: client.SourceSingleSplit, Split: split.Config{Train: 90, Validation: 5, Benchmark: 10}, RawFile: raw},
			message: "Split percentages must total 100.",
		},
		{
			req:     CreateTaskRequest{ProjectName: "p", BaseModelId: 1, Source: client.SourceSingleSplit, Split: split.Default()},
			message: "Upload a dataset file to auto-split.",
		},
		{
			req:     CreateTaskRequest{ProjectName: "p", BaseModelId: 1, Source: client.SourceExplicitFiles, TrainFileIds: []int64{1}, ValidationFileIds: []int64{2}},
			message: "Upload at least one train, validation, and benchmark file.",
		},
	} {
		remote := &fakeRemote{}
		c := newTestConsole(remote)

		_, err := c.CreateTask(context.Background(), tc.req)
		require.Error(t, err)
		assert.True(t, IsRequestError(err))
		assert.Equal(t, tc.message, err.Error())
		assert.Empty(t, remote.uploads)
		assert.Empty(t, remote.configs)
		assert.Empty(t, remote.createdTasks)
	}
}

func TestCreateTaskInvalidRawFileStopsBeforeConfig(t *testing.T) {
	remote := &fakeRemote{}
	c := newTestConsole(remote)

	_, err := c.CreateTask(context.Background(), CreateTaskRequest{
		ProjectName: "p",
		BaseModelId: 1,
		Source:      client.SourceSingleSplit,
		Split:       split.Default(),
		RawFile:     &Upload{Name: "all.jsonl", Blob: dataset.BytesBlob(goodLine + "\n" + badLine)},
	})
	var verr *dataset.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 2, verr.Line)
	assert.Empty(t, remote.uploads)
	assert.Empty(t, remote.configs)
}

func TestListTasksDecoration(t *testing.T) {
	ggufId := int64(77)
	running := taskEntry(2, "in_progress", 1)
	running.Task.PrimaryGGUFFileId = &ggufId
	done := taskEntry(3, "Completed", 1)
	done.Task.PrimaryGGUFFile = &client.File{Id: 5, FileType: "GGUF"}

	remote := &fakeRemote{
		balance: 5,
		entries: []client.TaskEntry{taskEntry(1, "", 3), running, done, taskEntry(4, "weird", 1)},
		files:   []client.File{{Id: 77, FileType: "gguf"}, {Id: 78, FileType: "train"}},
	}
	c := newTestConsole(remote)

	views, err := c.ListTasks(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, views, 4)

	draft := views[0]
	assert.Equal(t, tasks.StatusDraft, draft.Task.Status)
	assert.Equal(t, []tasks.Action{tasks.ActionStart, tasks.ActionDelete}, draft.Actions)
	assert.Equal(t, 6.0, draft.ExpectedCost)
	assert.False(t, draft.CanStart)
	assert.Equal(t, "Insufficient balance ($5.00) for expected cost $6.00.", draft.StartBlocked)

	assert.Equal(t, tasks.StatusRunning, views[1].Task.Status)
	assert.Equal(t, []tasks.Action{tasks.ActionStop}, views[1].Actions)
	require.NotNil(t, views[1].GGUF)
	assert.Equal(t, int64(77), views[1].GGUF.ID())

	assert.Equal(t, tasks.StatusSucceeded, views[2].Task.Status)
	assert.Empty(t, views[2].Actions)
	require.NotNil(t, views[2].GGUF)
	assert.Equal(t, int64(5), views[2].GGUF.ID())

	assert.Equal(t, tasks.StatusUnknown, views[3].Task.Status)
	assert.Equal(t, "weird", views[3].RawStatus)
	assert.Empty(t, views[3].Actions)
	assert.False(t, views[3].CanStart)
	assert.Empty(t, views[3].StartBlocked)
}

func TestStartTaskAdmission(t *testing.T) {
	remote := &fakeRemote{balance: 5, entries: []client.TaskEntry{taskEntry(1, "draft", 3), taskEntry(2, "draft", 2)}}
	c := newTestConsole(remote)

	err := c.StartTask(context.Background(), 1)
	assert.ErrorIs(t, err, tasks.ErrInsufficientBalance)
	assert.Empty(t, remote.actions)

	require.NoError(t, c.StartTask(context.Background(), 2))
	assert.Equal(t, []string{"start"}, remote.actions)
}

func TestStartTaskUnknownBalanceFailsOpen(t *testing.T) {
	remote := &fakeRemote{balanceErr: errors.New("down"), entries: []client.TaskEntry{taskEntry(1, "draft", 50)}}
	c := newTestConsole(remote)

	require.NoError(t, c.StartTask(context.Background(), 1))
	assert.Equal(t, []string{"start"}, remote.actions)
	assert.Equal(t, "Unavailable", c.Balance(context.Background()).Label)
}

func TestTaskActionsRespectLifecycle(t *testing.T) {
	remote := &fakeRemote{balance: 100, entries: []client.TaskEntry{
		taskEntry(1, "running", 1),
		taskEntry(2, "cancelled", 1),
		taskEntry(3, "succeeded", 1),
	}}
	c := newTestConsole(remote)
	ctx := context.Background()

	assert.ErrorIs(t, c.DeleteTask(ctx, 1), tasks.ErrActionNotPermitted)
	assert.ErrorIs(t, c.StartTask(ctx, 1), tasks.ErrActionNotPermitted)
	require.NoError(t, c.StopTask(ctx, 1))

	require.NoError(t, c.DeleteTask(ctx, 2))
	assert.ErrorIs(t, c.StopTask(ctx, 2), tasks.ErrActionNotPermitted)

	for _, action := range []func(context.Context, int64) error{c.StartTask, c.StopTask, c.DeleteTask} {
		assert.ErrorIs(t, action(ctx, 3), tasks.ErrActionNotPermitted)
	}

	assert.ErrorIs(t, c.StopTask(ctx, 99), ErrTaskNotFound)
	assert.Equal(t, []string{"stop", "delete"}, remote.actions)
}

func TestFindTaskPagesThroughList(t *testing.T) {
	var entries []client.TaskEntry
	for i := range 250 {
		entries = append(entries, taskEntry(int64(i+1), "draft", 1))
	}
	c := newTestConsole(&fakeRemote{balance: 10, entries: entries})

	view, err := c.FindTask(context.Background(), 230)
	require.NoError(t, err)
	assert.Equal(t, int64(230), view.Task.Id)
	assert.True(t, view.CanStart)
}

func TestDefaultBaseModel(t *testing.T) {
	_, ok := DefaultBaseModel(nil)
	assert.False(t, ok)

	m, ok := DefaultBaseModel([]client.BaseModel{{Id: 3}, {Id: 1}})
	require.True(t, ok)
	assert.Equal(t, int64(1), m.Id)

	m, ok = DefaultBaseModel([]client.BaseModel{{Id: 3}, {Id: 4}})
	require.True(t, ok)
	assert.Equal(t, int64(3), m.Id)
}

func TestBalanceCache(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	cache := NewBalanceCache(func(ctx context.Context) (float64, error) {
		calls.Add(1)
		<-release
		return 12.5, nil
	}, time.Minute)

	assert.Equal(t, "Unknown", cache.Label())

	var wg sync.WaitGroup
	results := make([]*float64, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = cache.Get(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return cache.Label() == "Loading..." }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, 12.5, *r)
	}
	assert.LessOrEqual(t, calls.Load(), int32(5))
	assert.Equal(t, "$12.50", cache.Label())

	before := calls.Load()
	cache.Get(context.Background())
	assert.Equal(t, before, calls.Load(), "fresh snapshot is served from cache")

	cache.Invalidate()
	cache.Get(context.Background())
	assert.Equal(t, before+1, calls.Load())
}

func TestBalanceCacheFailure(t *testing.T) {
	cache := NewBalanceCache(func(ctx context.Context) (float64, error) {
		return 0, errors.New("unreachable")
	}, time.Minute)

	assert.Nil(t, cache.Get(context.Background()))
	assert.Equal(t, "Unavailable", cache.Label())
}
