package api

import (
	"encoding/json"
	"log/slog"

	"finetune-console/internal/console"
	"finetune-console/internal/database"
	"finetune-console/internal/split"
	"finetune-console/internal/tasks"
	"finetune-console/pkg/api"
)

func convertValidationRun(run database.ValidationRun) api.ValidationRun {
	res := api.ValidationRun{
		Id:             run.Id,
		FileName:       run.FileName,
		FileRole:       run.FileRole,
		SizeBytes:      run.SizeBytes,
		Status:         run.Status,
		LinesScanned:   run.LinesScanned,
		RecordsChecked: run.RecordsChecked,
		CreationTime:   run.CreationTime,
	}

	if run.CompletionTime.Valid {
		res.CompletionTime = &run.CompletionTime.Time
	}

	if run.ErrorMessage.Valid {
		res.Error = &api.ValidationError{
			Kind:    run.ErrorKind.String,
			Message: run.ErrorMessage.String,
		}
		if run.ErrorLine.Valid {
			res.Error.Line = &run.ErrorLine.Int64
		}
	}

	if len(run.Summary) > 0 {
		var summary database.RunSummary
		if err := json.Unmarshal(run.Summary, &summary); err != nil {
			slog.Warn("error parsing run summary", "run_id", run.Id, "error", err)
		} else {
			res.DurationSecs = summary.DurationSecs
		}
	}

	return res
}

func convertValidationRuns(runs []database.ValidationRun) []api.ValidationRun {
	res := make([]api.ValidationRun, 0, len(runs))
	for _, run := range runs {
		res = append(res, convertValidationRun(run))
	}
	return res
}

func convertSplit(c api.SplitConfig) split.Config {
	return split.Config{Train: c.Train, Validation: c.Validation, Benchmark: c.Benchmark}
}

func convertSplitConfig(c split.Config) api.SplitConfig {
	return api.SplitConfig{Train: c.Train, Validation: c.Validation, Benchmark: c.Benchmark}
}

func convertHyperparameters(h *api.Hyperparameters) tasks.Hyperparameters {
	if h == nil {
		return tasks.Hyperparameters{}
	}
	return tasks.Hyperparameters{
		LearningRate:     h.LearningRate,
		BatchSize:        h.BatchSize,
		GradAccumulation: h.GradAccumulation,
		Epochs:           h.Epochs,
		MaxSeqLength:     h.MaxSeqLength,
		Optim:            h.Optim,
		LRSchedulerType:  h.LRSchedulerType,
		LoggingSteps:     h.LoggingSteps,
		SaveStrategy:     h.SaveStrategy,
		EvalStrategy:     h.EvalStrategy,
		BF16:             h.BF16,
	}
}

func convertTask(view console.TaskView) api.Task {
	actions := make([]string, 0, len(view.Actions))
	for _, a := range view.Actions {
		actions = append(actions, string(a))
	}

	res := api.Task{
		Id:            view.Task.Id,
		ProjectName:   view.Task.ProjectName,
		Status:        string(view.Task.Status),
		RawStatus:     view.RawStatus,
		BaseModelId:   view.Task.BaseModelId,
		BaseModelName: view.Task.BaseModelName,
		CreatedAt:     view.CreatedAt,
		Actions:       actions,
		ExpectedCost:  view.ExpectedCost,
		CanStart:      view.CanStart,
		StartBlocked:  view.StartBlocked,
	}

	if view.GGUF != nil {
		id := view.GGUF.ID()
		res.GGUFFileId = &id
		res.GGUFFileName = view.GGUF.DisplayName()
	}

	return res
}

func convertTasks(views []console.TaskView) []api.Task {
	res := make([]api.Task, 0, len(views))
	for _, v := range views {
		res = append(res, convertTask(v))
	}
	return res
}
