package console

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"finetune-console/internal/client"
	"finetune-console/internal/dataset"
	"finetune-console/internal/split"
	"finetune-console/internal/tasks"
)

const (
	DefaultDatasetName        = "Fine-tune dataset"
	DefaultDatasetDescription = "Generated from UI"
)

type Upload struct {
	Name string
	Blob dataset.Blob
}

type CreateTaskRequest struct {
	ProjectName string
	BaseModelId int64

	// Source is client.SourceSingleSplit or client.SourceExplicitFiles.
	Source string
	Split  split.Config

	// Used with explicit files. Each group needs at least one file.
	TrainFileIds      []int64
	ValidationFileIds []int64
	BenchmarkFileIds  []int64

	// Used with single split.
	RawFile *Upload

	// A zero value means tasks.DefaultHyperparameters.
	Hyperparameters tasks.Hyperparameters
}

type CreatedTask struct {
	Task            client.RemoteTask
	DatasetConfigId int64
	UploadedFile    *client.File
}

func requestErrorf(msg string) error {
	return &RequestError{Message: msg}
}

func (req CreateTaskRequest) check() error {
	if strings.TrimSpace(req.ProjectName) == "" {
		return requestErrorf("Project name is required.")
	}
	if req.BaseModelId <= 0 {
		return requestErrorf("Base model ID is required.")
	}

	switch req.Source {
	case client.SourceSingleSplit:
		if err := req.Split.Validate(); err != nil {
			return requestErrorf("Split percentages must total 100.")
		}
		if req.RawFile == nil || req.RawFile.Blob == nil {
			return requestErrorf("Upload a dataset file to auto-split.")
		}
	case client.SourceExplicitFiles:
		if len(req.TrainFileIds) == 0 || len(req.ValidationFileIds) == 0 || len(req.BenchmarkFileIds) == 0 {
			return requestErrorf("Upload at least one train, validation, and benchmark file.")
		}
	default:
		return requestErrorf("Unknown dataset source " + req.Source + ".")
	}
	return nil
}

func explicitMappings(req CreateTaskRequest) []client.FileMapping {
	var mappings []client.FileMapping
	for _, group := range []struct {
		role string
		ids  []int64
	}{
		{client.RoleTrain, req.TrainFileIds},
		{client.RoleValidation, req.ValidationFileIds},
		{client.RoleBenchmark, req.BenchmarkFileIds},
	} {
		for i, id := range group.ids {
			mappings = append(mappings, client.FileMapping{FileId: id, SplitRole: group.role, Position: i})
		}
	}
	return mappings
}

// BuildDatasetConfig registers a dataset config referencing already uploaded
// files.
func (c *Console) BuildDatasetConfig(ctx context.Context, name, source string, splits split.Config, mappings []client.FileMapping) (int64, error) {
	if len(mappings) == 0 {
		return 0, requestErrorf("No file ids available to build dataset config.")
	}
	if strings.TrimSpace(name) == "" {
		name = DefaultDatasetName
	}

	return c.remote.CreateDatasetConfig(ctx, client.DatasetConfigRequest{
		Name:               name,
		Description:        DefaultDatasetDescription,
		SourceType:         source,
		SplitTrainPct:      splits.Train,
		SplitValidationPct: splits.Validation,
		SplitBenchmarkPct:  splits.Benchmark,
		Files:              mappings,
	})
}

// CreateTask builds the dataset config for the request and creates a draft
// task referencing it. Form rules are checked before any remote call; with a
// single split the raw file is validated and uploaded first.
func (c *Console) CreateTask(ctx context.Context, req CreateTaskRequest) (CreatedTask, error) {
	if err := req.check(); err != nil {
		return CreatedTask{}, err
	}
	projectName := strings.TrimSpace(req.ProjectName)

	var created CreatedTask
	var mappings []client.FileMapping

	switch req.Source {
	case client.SourceSingleSplit:
		file, err := c.ValidateAndUpload(ctx, client.RoleTrain, req.RawFile.Name, req.RawFile.Blob)
		if err != nil {
			return CreatedTask{}, err
		}
		created.UploadedFile = &file
		mappings = []client.FileMapping{{FileId: file.ID(), SplitRole: client.RoleRaw, Position: 0}}
	case client.SourceExplicitFiles:
		mappings = explicitMappings(req)
	}

	configId, err := c.BuildDatasetConfig(ctx, projectName, req.Source, req.Split, mappings)
	if err != nil {
		return CreatedTask{}, err
	}
	created.DatasetConfigId = configId

	hyperparameters := req.Hyperparameters
	if hyperparameters == (tasks.Hyperparameters{}) {
		hyperparameters = tasks.DefaultHyperparameters()
	}

	task, err := c.remote.CreateTask(ctx, client.CreateTaskRequest{
		BaseModelId:     req.BaseModelId,
		DatasetConfigId: configId,
		ProjectName:     projectName,
		Hyperparameters: hyperparameters,
	})
	if err != nil {
		return CreatedTask{}, err
	}
	created.Task = task

	slog.Info("task created", "task_id", task.ID(), "dataset_config_id", configId, "source", req.Source)
	return created, nil
}

func IsRequestError(err error) bool {
	var rerr *RequestError
	return errors.As(err, &rerr)
}
