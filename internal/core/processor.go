package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finetune-console/internal/database"
	"finetune-console/internal/dataset"
	"finetune-console/internal/messaging"
	"finetune-console/internal/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultCancelPollInterval = 2 * time.Second

var (
	// Cause of a run context cancelled at a user's request.
	errRunCancelled = errors.New("validation run cancelled")
	// Cause of a run context cancelled because the processor is stopping.
	errProcessorStopped = errors.New("task processor stopped")

	errRunInterrupted = errors.New("validation run interrupted")
)

// TaskProcessor runs queued dataset validations. Each run gets its own
// cancellable context, registered by run id until the scan finishes.
type TaskProcessor struct {
	db       *gorm.DB
	storage  storage.ObjectStore
	pipeline *dataset.Pipeline
	receiver messaging.Receiver

	// How often a running scan checks the db for a cancellation made by
	// another process. Zero disables polling.
	pollInterval time.Duration

	mu     sync.Mutex
	active map[uuid.UUID]context.CancelCauseFunc
}

func NewTaskProcessor(db *gorm.DB, storage storage.ObjectStore, pipeline *dataset.Pipeline, receiver messaging.Receiver, pollInterval time.Duration) *TaskProcessor {
	return &TaskProcessor{
		db:           db,
		storage:      storage,
		pipeline:     pipeline,
		receiver:     receiver,
		pollInterval: pollInterval,
		active:       make(map[uuid.UUID]context.CancelCauseFunc),
	}
}

func (proc *TaskProcessor) Start(ctx context.Context) {
	slog.Info("starting task processor")

	for {
		select {
		case task, ok := <-proc.receiver.Tasks():
			if !ok {
				slog.Info("task channel closed, task processor exiting")
				return
			}
			proc.ProcessTask(ctx, task)
		case <-ctx.Done():
			slog.Info("task processor context done", "error", ctx.Err())
			return
		}
	}
}

func (proc *TaskProcessor) Stop() {
	slog.Info("stopping task processor")

	proc.receiver.Close()

	proc.mu.Lock()
	defer proc.mu.Unlock()
	for runId, cancel := range proc.active {
		slog.Info("interrupting in-flight validation", "run_id", runId)
		cancel(errProcessorStopped)
	}
}

// Cancel stops an in-flight scan started by this processor. It reports false
// if the run is not currently being scanned here.
func (proc *TaskProcessor) Cancel(runId uuid.UUID) bool {
	proc.mu.Lock()
	defer proc.mu.Unlock()

	cancel, ok := proc.active[runId]
	if ok {
		cancel(errRunCancelled)
	}
	return ok
}

func (proc *TaskProcessor) register(runId uuid.UUID, cancel context.CancelCauseFunc) {
	proc.mu.Lock()
	defer proc.mu.Unlock()
	proc.active[runId] = cancel
}

func (proc *TaskProcessor) unregister(runId uuid.UUID) {
	proc.mu.Lock()
	defer proc.mu.Unlock()
	delete(proc.active, runId)
}

func (proc *TaskProcessor) ProcessTask(ctx context.Context, task messaging.Task) {
	var err error
	switch task.Type() {
	case messaging.ValidationQueue:
		var payload messaging.ValidationPayload
		if err = json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling validation task", "error", err)
			if err := task.Reject(); err != nil { // Discard malformed message
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = proc.processValidationTask(ctx, payload)

	default:
		slog.Error("received unknown task type", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	if errors.Is(err, errRunInterrupted) {
		slog.Info("returning interrupted task to queue", "queue", task.Type(), "error", err)
		if err := task.Requeue(); err != nil {
			slog.Error("error requeueing message", "error", err)
		}
	} else if err != nil {
		slog.Error("error processing task", "queue", task.Type(), "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
	} else {
		slog.Info("successfully processed task", "queue", task.Type())
		if err := task.Ack(); err != nil {
			slog.Error("error acknowledging message from queue", "error", err)
		}
	}
}

func (proc *TaskProcessor) processValidationTask(ctx context.Context, payload messaging.ValidationPayload) error {
	runId := payload.RunId

	started, err := database.StartValidationRun(ctx, proc.db, runId)
	if err != nil {
		return err
	}
	if !started {
		slog.Info("validation run is not queued, skipping", "run_id", runId)
		return nil
	}

	slog.Info("processing validation task", "run_id", runId, "object_key", payload.ObjectKey)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	proc.register(runId, cancel)
	defer proc.unregister(runId)

	if proc.pollInterval > 0 {
		go proc.watchCancellation(runCtx, runId, cancel)
	}

	// Result writes must survive the run context being cancelled.
	saveCtx := context.WithoutCancel(ctx)

	start := time.Now()
	blob, err := proc.storage.OpenBlob(runCtx, payload.ObjectKey)
	if err != nil {
		if runCtx.Err() != nil {
			return proc.stopRun(saveCtx, runCtx, runId)
		}
		if saveErr := database.SaveValidationResult(saveCtx, proc.db, runId, database.RunSummary{}, fmt.Errorf("unable to open dataset: %w", err)); saveErr != nil {
			return saveErr
		}
		return fmt.Errorf("error opening object %s: %w", payload.ObjectKey, err)
	}
	defer blob.Close()

	res, err := proc.pipeline.Validate(runCtx, payload.FileName, blob)

	summary := database.RunSummary{
		Lines:        res.Lines,
		Records:      res.Records,
		BytesScanned: res.Bytes,
		DurationSecs: time.Since(start).Seconds(),
	}

	switch {
	case err == nil:
		slog.Info("dataset passed validation", "run_id", runId, "lines", res.Lines, "records", res.Records)
		return database.SaveValidationResult(saveCtx, proc.db, runId, summary, nil)

	case runCtx.Err() != nil:
		return proc.stopRun(saveCtx, runCtx, runId)

	default:
		if kind, ok := dataset.KindOf(err); ok {
			slog.Info("dataset failed validation", "run_id", runId, "kind", kind, "error", err)
			return database.SaveValidationResult(saveCtx, proc.db, runId, summary, err)
		}
		if saveErr := database.SaveValidationResult(saveCtx, proc.db, runId, summary, err); saveErr != nil {
			return saveErr
		}
		return fmt.Errorf("error validating %s: %w", payload.ObjectKey, err)
	}
}

// stopRun settles a run whose context was cancelled. A user cancel marks it
// CANCELLED. Anything else, such as the processor stopping, puts it back to
// QUEUED and returns errRunInterrupted so the message is requeued.
func (proc *TaskProcessor) stopRun(saveCtx, runCtx context.Context, runId uuid.UUID) error {
	if errors.Is(context.Cause(runCtx), errRunCancelled) {
		slog.Info("validation run cancelled", "run_id", runId)
		if _, err := database.CancelValidationRun(saveCtx, proc.db, runId); err != nil {
			return err
		}
		return nil
	}

	requeued, err := database.RequeueValidationRun(saveCtx, proc.db, runId)
	if err != nil {
		return err
	}
	if !requeued {
		slog.Info("interrupted validation run is no longer running", "run_id", runId)
		return nil
	}
	slog.Info("validation run interrupted, requeued", "run_id", runId, "cause", context.Cause(runCtx))
	return fmt.Errorf("%w: %s", errRunInterrupted, runId)
}

func (proc *TaskProcessor) watchCancellation(ctx context.Context, runId uuid.UUID, cancel context.CancelCauseFunc) {
	ticker := time.NewTicker(proc.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run, err := database.GetValidationRun(ctx, proc.db, runId)
			if err != nil {
				if ctx.Err() == nil {
					slog.Warn("error polling validation run status", "run_id", runId, "error", err)
				}
				continue
			}
			if run.Status == database.RunCancelled {
				slog.Info("validation run cancelled externally", "run_id", runId)
				cancel(errRunCancelled)
				return
			}
		}
	}
}
