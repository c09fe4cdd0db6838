package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"finetune-console/internal/client"
	"finetune-console/internal/console"
	"finetune-console/internal/dataset"
	"finetune-console/internal/split"
	"finetune-console/internal/tasks"

	"github.com/spf13/cobra"
)

func newTasksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Create and control fine-tuning tasks",
	}
	cmd.AddCommand(newTasksListCommand())
	cmd.AddCommand(newTasksCreateCommand())
	cmd.AddCommand(newTaskActionCommand(tasks.ActionStart, "Start a draft task"))
	cmd.AddCommand(newTaskActionCommand(tasks.ActionStop, "Stop a queued or running task"))
	cmd.AddCommand(newTaskActionCommand(tasks.ActionDelete, "Delete a task"))
	cmd.AddCommand(newTasksLogsCommand())
	return cmd
}

func formatActions(view console.TaskView) string {
	if len(view.Actions) == 0 {
		return "-"
	}
	names := make([]string, 0, len(view.Actions))
	for _, a := range view.Actions {
		if a == tasks.ActionStart && !view.CanStart {
			continue
		}
		names = append(names, string(a))
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ",")
}

func newTasksListCommand() *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks with the actions available for each",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := connect()
			if err != nil {
				return err
			}

			views, err := r.console.ListTasks(cmd.Context(), page)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(views) == 0 {
				fmt.Fprintln(out, "No tasks.")
				return nil
			}
			for _, v := range views {
				fmt.Fprintf(out, "%-8d %-30s %-10s %-24s %8s  %s\n",
					v.Task.Id, console.TruncateName(v.Task.ProjectName, 30), v.Task.Status,
					console.TruncateName(v.Task.BaseModelName, 24), tasks.FormatDollars(v.ExpectedCost), formatActions(v))
				if v.StartBlocked != "" {
					fmt.Fprintf(out, "         %s\n", v.StartBlocked)
				}
				if v.GGUF != nil {
					fmt.Fprintf(out, "         gguf: %s (file %d)\n", v.GGUF.DisplayName(), v.GGUF.ID())
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "page to show, starting at 0")
	return cmd
}

type createOptions struct {
	project         string
	baseModelId     int64
	rawFile         string
	train           []int64
	validation      []int64
	benchmark       []int64
	splitTrain      int
	splitValidation int
	splitBenchmark  int
	epochs          int
	learningRate    float64
}

func newTasksCreateCommand() *cobra.Command {
	opts := &createOptions{}
	defaults := split.Default()
	hp := tasks.DefaultHyperparameters()

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft fine-tuning task",
		Long: `Create builds a dataset config and a draft task referencing it.

With --file the dataset is validated, uploaded and split according to the
--split-* percentages. Otherwise the task uses already uploaded files given
with --train, --validation and --benchmark; each group needs at least one id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := connect()
			if err != nil {
				return err
			}

			baseModelId := opts.baseModelId
			if baseModelId == 0 {
				models, err := r.console.BaseModels(cmd.Context())
				if err != nil {
					return err
				}
				model, ok := console.DefaultBaseModel(models)
				if !ok {
					return fmt.Errorf("no base models available")
				}
				baseModelId = model.Id
			}

			hp.Epochs = opts.epochs
			hp.LearningRate = opts.learningRate

			req := console.CreateTaskRequest{
				ProjectName:       opts.project,
				BaseModelId:       baseModelId,
				Source:            client.SourceExplicitFiles,
				Split:             split.Config{Train: opts.splitTrain, Validation: opts.splitValidation, Benchmark: opts.splitBenchmark},
				TrainFileIds:      opts.train,
				ValidationFileIds: opts.validation,
				BenchmarkFileIds:  opts.benchmark,
				Hyperparameters:   hp,
			}

			if opts.rawFile != "" {
				blob, err := dataset.OpenFileBlob(opts.rawFile)
				if err != nil {
					return err
				}
				defer blob.Close()

				req.Source = client.SourceSingleSplit
				req.RawFile = &console.Upload{Name: filepath.Base(opts.rawFile), Blob: blob}
			}

			created, err := r.console.CreateTask(cmd.Context(), req)
			if err != nil {
				return rejectedOr(err)
			}

			out := cmd.OutOrStdout()
			if created.UploadedFile != nil {
				fmt.Fprintf(out, "uploaded %s as file %d\n", created.UploadedFile.DisplayName(), created.UploadedFile.ID())
			}
			fmt.Fprintf(out, "created task %d with dataset config %d\n", created.Task.ID(), created.DatasetConfigId)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.project, "project", "", "project name")
	cmd.Flags().Int64Var(&opts.baseModelId, "base-model", 0, "base model id (defaults to the first available)")
	cmd.Flags().StringVar(&opts.rawFile, "file", "", "dataset to upload and split")
	cmd.Flags().Int64SliceVar(&opts.train, "train", nil, "train file ids")
	cmd.Flags().Int64SliceVar(&opts.validation, "validation", nil, "validation file ids")
	cmd.Flags().Int64SliceVar(&opts.benchmark, "benchmark", nil, "benchmark file ids")
	cmd.Flags().IntVar(&opts.splitTrain, "split-train", defaults.Train, "train percentage for --file")
	cmd.Flags().IntVar(&opts.splitValidation, "split-validation", defaults.Validation, "validation percentage for --file")
	cmd.Flags().IntVar(&opts.splitBenchmark, "split-benchmark", defaults.Benchmark, "benchmark percentage for --file")
	cmd.Flags().IntVar(&opts.epochs, "epochs", hp.Epochs, "training epochs")
	cmd.Flags().Float64Var(&opts.learningRate, "learning-rate", hp.LearningRate, "learning rate")
	return cmd
}

func newTaskActionCommand(action tasks.Action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(action) + " <task-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskId, err := parseId(args[0])
			if err != nil {
				return err
			}

			r, err := connect()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			switch action {
			case tasks.ActionStart:
				err = r.console.StartTask(ctx, taskId)
			case tasks.ActionStop:
				err = r.console.StopTask(ctx, taskId)
			case tasks.ActionDelete:
				err = r.console.DeleteTask(ctx, taskId)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: task %d\n", action, taskId)
			return nil
		},
	}
}

func newTasksLogsCommand() *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "logs <task-id>",
		Short: "Show a page of task logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskId, err := parseId(args[0])
			if err != nil {
				return err
			}

			r, err := connect()
			if err != nil {
				return err
			}

			logs, err := r.console.TaskLogs(cmd.Context(), taskId, page)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(logs) == 0 {
				fmt.Fprintln(out, "No logs.")
				return nil
			}
			for _, l := range logs {
				fmt.Fprintf(out, "%s %-7s %s\n", l.Time(), strings.ToUpper(l.Level), l.Text())
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "page to show, starting at 0")
	return cmd
}
