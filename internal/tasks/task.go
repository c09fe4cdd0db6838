package tasks

type Hyperparameters struct {
	LearningRate     float64 `json:"learning_rate"`
	BatchSize        int     `json:"batch_size"`
	GradAccumulation int     `json:"grad_accumulation"`
	Epochs           int     `json:"epochs"`
	MaxSeqLength     int     `json:"max_seq_length"`
	Optim            string  `json:"optim"`
	LRSchedulerType  string  `json:"lr_scheduler_type"`
	LoggingSteps     int     `json:"logging_steps"`
	SaveStrategy     string  `json:"save_strategy"`
	EvalStrategy     string  `json:"eval_strategy"`
	BF16             bool    `json:"bf16"`
}

func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		LearningRate:     2e-4,
		BatchSize:        1,
		GradAccumulation: 4,
		Epochs:           1,
		MaxSeqLength:     2048,
		Optim:            "adamw_torch",
		LRSchedulerType:  "cosine",
		LoggingSteps:     10,
		SaveStrategy:     "epoch",
		EvalStrategy:     "no",
		BF16:             true,
	}
}

// Task is the client-side view of a fine-tuning task. Status is the only
// field that changes over the task's life, and only the remote execution
// system changes it.
type Task struct {
	Id                int64
	Status            Status
	ProjectName       string
	BaseModelId       int64
	BaseModelName     string
	DatasetConfigId   int64
	Epochs            int
	Hyperparameters   Hyperparameters
	PrimaryGGUFFileId *int64
}
