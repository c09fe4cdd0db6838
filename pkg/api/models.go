package api

import (
	"time"

	"github.com/google/uuid"
)

type ValidationError struct {
	Kind    string
	Line    *int64 `json:"Line,omitempty"`
	Message string
}

type ValidationRun struct {
	Id        uuid.UUID
	FileName  string
	FileRole  string
	SizeBytes int64

	Status string
	Error  *ValidationError `json:"Error,omitempty"`

	LinesScanned   int64
	RecordsChecked int64
	DurationSecs   float64

	CreationTime   time.Time
	CompletionTime *time.Time `json:"CompletionTime,omitempty"`
}

type CreateValidationResponse struct {
	RunId uuid.UUID
}

type ListValidationsParams struct {
	Limit  int `schema:"limit"`
	Offset int `schema:"offset"`
}

type SplitConfig struct {
	Train      int
	Validation int
	Benchmark  int
}

type AdjustSplitRequest struct {
	Split SplitConfig
	Field string
	Value int
}

type AdjustSplitResponse struct {
	Split SplitConfig
	Valid bool
}

type Hyperparameters struct {
	LearningRate     float64
	BatchSize        int
	GradAccumulation int
	Epochs           int
	MaxSeqLength     int
	Optim            string
	LRSchedulerType  string
	LoggingSteps     int
	SaveStrategy     string
	EvalStrategy     string
	BF16             bool
}

type ListTasksParams struct {
	Page int `schema:"page"`
}

type Task struct {
	Id            int64
	ProjectName   string
	Status        string
	RawStatus     string
	BaseModelId   int64
	BaseModelName string
	CreatedAt     string

	Actions      []string
	ExpectedCost float64
	CanStart     bool
	StartBlocked string `json:"StartBlocked,omitempty"`

	GGUFFileId   *int64 `json:"GGUFFileId,omitempty"`
	GGUFFileName string `json:"GGUFFileName,omitempty"`
}

// CreateTaskRequest builds a dataset config and a draft task. With the
// single_split source the dataset is a previously passed validation run.
type CreateTaskRequest struct {
	ProjectName string
	BaseModelId int64

	Source string
	Split  *SplitConfig

	TrainFileIds      []int64
	ValidationFileIds []int64
	BenchmarkFileIds  []int64

	ValidationRunId *uuid.UUID

	Hyperparameters *Hyperparameters
}

type CreateTaskResponse struct {
	TaskId          int64
	DatasetConfigId int64
	UploadedFileId  *int64 `json:"UploadedFileId,omitempty"`
}

type Balance struct {
	Dollars *float64
	Label   string
}
