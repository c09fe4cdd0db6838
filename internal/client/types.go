package client

import (
	"encoding/json"
	"strings"

	"finetune-console/internal/tasks"
)

const (
	RoleTrain      = "train"
	RoleValidation = "validation"
	RoleBenchmark  = "benchmark"
	RoleRaw        = "raw"
	RoleGGUF       = "gguf"

	SourceExplicitFiles = "explicit_files"
	SourceSingleSplit   = "single_split"
)

type File struct {
	Id           int64  `json:"id"`
	FileId       int64  `json:"file_id"`
	OriginalName string `json:"original_name"`
	StorageKey   string `json:"storage_key"`
	FileType     string `json:"file_type"`
	SizeBytes    *int64 `json:"size_bytes"`
	CreatedAt    string `json:"created_at"`
}

// ID returns whichever identifier the API populated.
func (f File) ID() int64 {
	if f.Id != 0 {
		return f.Id
	}
	return f.FileId
}

func (f File) DisplayName() string {
	switch {
	case f.OriginalName != "":
		return f.OriginalName
	case f.StorageKey != "":
		return f.StorageKey
	default:
		return ""
	}
}

func (f File) IsGGUF() bool {
	return strings.EqualFold(f.FileType, RoleGGUF)
}

type BaseModel struct {
	Id          int64  `json:"id"`
	ModelName   string `json:"model_name"`
	DisplayName string `json:"display_name"`
}

func (m BaseModel) Name() string {
	if m.ModelName != "" {
		return m.ModelName
	}
	return m.DisplayName
}

type FileMapping struct {
	FileId    int64  `json:"file_id"`
	SplitRole string `json:"split_role"`
	Position  int    `json:"position"`
}

type DatasetConfigRequest struct {
	Name               string        `json:"name"`
	Description        string        `json:"description"`
	SourceType         string        `json:"source_type"`
	SplitTrainPct      int           `json:"split_train_pct"`
	SplitValidationPct int           `json:"split_validation_pct"`
	SplitBenchmarkPct  int           `json:"split_benchmark_pct"`
	Files              []FileMapping `json:"files"`
}

type datasetConfigResponse struct {
	DatasetConfigId int64 `json:"dataset_config_id"`
	Id              int64 `json:"id"`
	Data            struct {
		Id int64 `json:"id"`
	} `json:"data"`
}

func (r datasetConfigResponse) id() int64 {
	switch {
	case r.DatasetConfigId != 0:
		return r.DatasetConfigId
	case r.Id != 0:
		return r.Id
	default:
		return r.Data.Id
	}
}

type CreateTaskRequest struct {
	BaseModelId     int64  `json:"base_model_id"`
	DatasetConfigId int64  `json:"dataset_config_id"`
	ProjectName     string `json:"project_name"`
	tasks.Hyperparameters
}

type RemoteTask struct {
	Id                int64   `json:"id"`
	TaskId            int64   `json:"task_id"`
	ProjectName       string  `json:"project_name"`
	Status            string  `json:"status"`
	BaseModelId       int64   `json:"base_model_id"`
	DatasetConfigId   int64   `json:"dataset_config_id"`
	Epochs            float64 `json:"epochs"`
	PrimaryGGUFFile   *File   `json:"primary_gguf_file"`
	PrimaryGGUFFileId *int64  `json:"primary_gguf_file_id"`
	GGUFFileId        *int64  `json:"gguf_file_id"`
	CreatedAt         string  `json:"created_at"`
}

func (t RemoteTask) ID() int64 {
	if t.Id != 0 {
		return t.Id
	}
	return t.TaskId
}

// TaskEntry is one row of GET /tasks. The API returns either a wrapped
// {task, base_model, dataset_config} object or a bare task.
type TaskEntry struct {
	Task          RemoteTask      `json:"task"`
	TaskStatus    string          `json:"task_status"`
	BaseModel     BaseModel       `json:"base_model"`
	DatasetConfig json.RawMessage `json:"dataset_config,omitempty"`
}

func (e *TaskEntry) UnmarshalJSON(data []byte) error {
	type wrapped struct {
		Task          *RemoteTask     `json:"task"`
		TaskStatus    string          `json:"task_status"`
		BaseModel     BaseModel       `json:"base_model"`
		DatasetConfig json.RawMessage `json:"dataset_config"`
	}
	var w wrapped
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*e = TaskEntry{TaskStatus: w.TaskStatus, BaseModel: w.BaseModel, DatasetConfig: w.DatasetConfig}
	if w.Task != nil {
		e.Task = *w.Task
		return nil
	}
	return json.Unmarshal(data, &e.Task)
}

func (e TaskEntry) Status() string {
	if e.Task.Status != "" {
		return e.Task.Status
	}
	return e.TaskStatus
}

func (e TaskEntry) BaseModelId() int64 {
	if e.Task.BaseModelId != 0 {
		return e.Task.BaseModelId
	}
	return e.BaseModel.Id
}

type LogEntry struct {
	Timestamp string `json:"timestamp"`
	CreatedAt string `json:"created_at"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Detail    string `json:"detail"`
}

func (l LogEntry) Time() string {
	if l.Timestamp != "" {
		return l.Timestamp
	}
	return l.CreatedAt
}

func (l LogEntry) Text() string {
	if l.Message != "" {
		return l.Message
	}
	return l.Detail
}

type Transaction struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	AmountCents float64 `json:"amount_cents"`
	Currency    string  `json:"currency"`
	CreatedAt   string  `json:"created_at"`
	Timestamp   string  `json:"timestamp"`
}

type balanceResponse struct {
	BalanceDollars *float64 `json:"balance_dollars"`
}

type itemsResponse[T any] struct {
	Items []T `json:"items"`
}
