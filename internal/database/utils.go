package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finetune-console/internal/dataset"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrRunNotFound = errors.New("validation run not found")

func CreateValidationRun(ctx context.Context, txn *gorm.DB, run *ValidationRun) error {
	if run.Id == uuid.Nil {
		run.Id = uuid.New()
	}
	if run.Status == "" {
		run.Status = RunQueued
	}
	if run.CreationTime.IsZero() {
		run.CreationTime = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Create(run).Error; err != nil {
		slog.Error("error creating validation run", "run_id", run.Id, "error", err)
		return fmt.Errorf("error creating validation run: %w", err)
	}
	return nil
}

func GetValidationRun(ctx context.Context, txn *gorm.DB, runId uuid.UUID) (ValidationRun, error) {
	var run ValidationRun
	if err := txn.WithContext(ctx).First(&run, "id = ?", runId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ValidationRun{}, fmt.Errorf("%w: %s", ErrRunNotFound, runId)
		}
		return ValidationRun{}, fmt.Errorf("error loading validation run %s: %w", runId, err)
	}
	return run, nil
}

func ListValidationRuns(ctx context.Context, txn *gorm.DB, limit, offset int) ([]ValidationRun, error) {
	var runs []ValidationRun
	if err := txn.WithContext(ctx).Order("creation_time DESC").Limit(limit).Offset(offset).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("error listing validation runs: %w", err)
	}
	return runs, nil
}

func UpdateValidationRunStatus(ctx context.Context, txn *gorm.DB, runId uuid.UUID, status string) error {
	updates := map[string]any{"status": status}
	if IsFinalRunStatus(status) {
		updates["completion_time"] = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Model(&ValidationRun{Id: runId}).Updates(updates).Error; err != nil {
		slog.Error("error updating validation run status", "run_id", runId, "status", status, "error", err)
		return err
	}
	return nil
}

// StartValidationRun moves a queued run to RUNNING. It reports false if the
// run is no longer queued, e.g. because it was cancelled in the meantime.
func StartValidationRun(ctx context.Context, txn *gorm.DB, runId uuid.UUID) (bool, error) {
	res := txn.WithContext(ctx).Model(&ValidationRun{}).
		Where("id = ? AND status = ?", runId, RunQueued).
		Update("status", RunRunning)
	if res.Error != nil {
		return false, fmt.Errorf("error starting validation run %s: %w", runId, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// RequeueValidationRun moves a running run back to QUEUED so it can be picked
// up again. It reports false if the run is no longer running.
func RequeueValidationRun(ctx context.Context, txn *gorm.DB, runId uuid.UUID) (bool, error) {
	res := txn.WithContext(ctx).Model(&ValidationRun{}).
		Where("id = ? AND status = ?", runId, RunRunning).
		Update("status", RunQueued)
	if res.Error != nil {
		return false, fmt.Errorf("error requeueing validation run %s: %w", runId, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CancelValidationRun marks a queued or running run CANCELLED. It reports
// false if the run had already finished.
func CancelValidationRun(ctx context.Context, txn *gorm.DB, runId uuid.UUID) (bool, error) {
	res := txn.WithContext(ctx).Model(&ValidationRun{}).
		Where("id = ? AND status IN ?", runId, []string{RunQueued, RunRunning}).
		Updates(map[string]any{"status": RunCancelled, "completion_time": time.Now().UTC()})
	if res.Error != nil {
		return false, fmt.Errorf("error cancelling validation run %s: %w", runId, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// SaveValidationResult records the outcome of a finished scan. A nil
// validationErr marks the run PASSED, otherwise FAILED with the first error.
// Runs that were cancelled while scanning keep their CANCELLED status.
func SaveValidationResult(ctx context.Context, txn *gorm.DB, runId uuid.UUID, summary RunSummary, validationErr error) error {
	encoded, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("error encoding run summary: %w", err)
	}

	updates := map[string]any{
		"lines_scanned":   summary.Lines,
		"records_checked": summary.Records,
		"summary":         datatypes.JSON(encoded),
		"completion_time": time.Now().UTC(),
		"status":          RunPassed,
	}

	if validationErr != nil {
		updates["status"] = RunFailed
		updates["error_message"] = sql.NullString{String: validationErr.Error(), Valid: true}
		if kind, ok := dataset.KindOf(validationErr); ok {
			updates["error_kind"] = sql.NullString{String: string(kind), Valid: true}
		}
		var verr *dataset.ValidationError
		if errors.As(validationErr, &verr) {
			updates["error_line"] = sql.NullInt64{Int64: int64(verr.Line), Valid: true}
		}
	}

	res := txn.WithContext(ctx).Model(&ValidationRun{}).
		Where("id = ? AND status = ?", runId, RunRunning).
		Updates(updates)
	if res.Error != nil {
		slog.Error("error saving validation result", "run_id", runId, "error", res.Error)
		return fmt.Errorf("error saving validation result for %s: %w", runId, res.Error)
	}
	if res.RowsAffected == 0 {
		slog.Info("validation run no longer running, result discarded", "run_id", runId)
	}
	return nil
}
