package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"finetune-console/internal/client"
	"finetune-console/internal/console"
	"finetune-console/internal/database"
	"finetune-console/internal/messaging"
	"finetune-console/internal/split"
	"finetune-console/internal/storage"
	"finetune-console/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	maxMultipartMemory    = 32 << 20
	defaultValidationsMax = 50
)

// RunCanceller stops an in-flight validation scan in this process.
type RunCanceller interface {
	Cancel(runId uuid.UUID) bool
}

type BackendService struct {
	db        *gorm.DB
	storage   storage.ObjectStore
	publisher messaging.Publisher
	console   *console.Console
	canceller RunCanceller
}

// NewBackendService wires the http handlers. canceller may be nil when the
// worker runs in a separate process; it then notices cancellations by polling
// the run status.
func NewBackendService(db *gorm.DB, storage storage.ObjectStore, publisher messaging.Publisher, console *console.Console, canceller RunCanceller) *BackendService {
	return &BackendService{
		db:        db,
		storage:   storage,
		publisher: publisher,
		console:   console,
		canceller: canceller,
	}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))

	r.Route("/validations", func(r chi.Router) {
		r.Post("/", RestHandler(s.CreateValidation))
		r.Get("/", RestHandler(s.ListValidations))
		r.Get("/{run_id}", RestHandler(s.GetValidation))
		r.Post("/{run_id}/cancel", RestHandler(s.CancelValidation))
	})

	r.Post("/splits/adjust", RestHandler(s.AdjustSplit))

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListTasks))
		r.Post("/", RestHandler(s.CreateTask))
		r.Post("/{task_id}/start", RestHandler(s.StartTask))
		r.Post("/{task_id}/stop", RestHandler(s.StopTask))
		r.Delete("/{task_id}", RestHandler(s.DeleteTask))
	})

	r.Get("/balance", RestHandler(s.GetBalance))
}

func (s *BackendService) CreateValidation(r *http.Request) (any, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "error parsing multipart form: %v", err)
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			slog.Warn("error removing multipart temp files", "error", err)
		}
	}()

	role := r.FormValue("file_type")
	if role == "" {
		role = client.RoleTrain
	}
	if err := console.CheckUploadRole(role); err != nil {
		return nil, CodedError(http.StatusUnprocessableEntity, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "missing file in multipart form")
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if err := s.console.Pipeline().CheckFile(name, header.Size); err != nil {
		return nil, CodedError(http.StatusUnprocessableEntity, err)
	}

	runId := uuid.New()
	key := fmt.Sprintf("validations/%s/%s", runId, name)

	if err := s.storage.PutObject(r.Context(), key, file); err != nil {
		slog.Error("error storing dataset", "run_id", runId, "key", key, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error storing dataset")
	}

	run := database.ValidationRun{
		Id:        runId,
		FileName:  name,
		FileRole:  role,
		SizeBytes: header.Size,
		ObjectKey: key,
		Status:    database.RunQueued,
	}
	if err := database.CreateValidationRun(r.Context(), s.db, &run); err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error creating validation run")
	}

	payload := messaging.ValidationPayload{RunId: runId, ObjectKey: key, FileName: name}
	if err := s.publisher.PublishValidationTask(r.Context(), payload); err != nil {
		slog.Error("error queueing validation run", "run_id", runId, "error", err)
		if err := database.UpdateValidationRunStatus(context.WithoutCancel(r.Context()), s.db, runId, database.RunFailed); err != nil {
			slog.Error("error marking unqueued run failed", "run_id", runId, "error", err)
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "error queueing validation run")
	}

	slog.Info("validation run queued", "run_id", runId, "file", name, "role", role, "size", header.Size)

	return api.CreateValidationResponse{RunId: runId}, nil
}

func (s *BackendService) ListValidations(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListValidationsParams](r)
	if err != nil {
		return nil, err
	}
	if params.Limit <= 0 || params.Limit > defaultValidationsMax {
		params.Limit = defaultValidationsMax
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	runs, err := database.ListValidationRuns(r.Context(), s.db, params.Limit, params.Offset)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error listing validation runs")
	}
	return convertValidationRuns(runs), nil
}

func (s *BackendService) GetValidation(r *http.Request) (any, error) {
	runId, err := URLParamUUID(r, "run_id")
	if err != nil {
		return nil, err
	}

	run, err := database.GetValidationRun(r.Context(), s.db, runId)
	if err != nil {
		return nil, err
	}
	return convertValidationRun(run), nil
}

func (s *BackendService) CancelValidation(r *http.Request) (any, error) {
	runId, err := URLParamUUID(r, "run_id")
	if err != nil {
		return nil, err
	}

	run, err := database.GetValidationRun(r.Context(), s.db, runId)
	if err != nil {
		return nil, err
	}

	cancelled, err := database.CancelValidationRun(r.Context(), s.db, runId)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error cancelling validation run")
	}
	if !cancelled {
		return nil, CodedErrorf(http.StatusConflict, "validation run %s already finished with status %s", runId, run.Status)
	}

	if s.canceller != nil && s.canceller.Cancel(runId) {
		slog.Info("in-flight validation scan stopped", "run_id", runId)
	}

	slog.Info("validation run cancelled", "run_id", runId)
	return nil, nil
}

func (s *BackendService) AdjustSplit(r *http.Request) (any, error) {
	req, err := ParseRequest[api.AdjustSplitRequest](r)
	if err != nil {
		return nil, err
	}

	field, err := split.ParseField(req.Field)
	if err != nil {
		return nil, CodedError(http.StatusUnprocessableEntity, err)
	}

	adjusted := convertSplit(req.Split).Adjust(field, req.Value)

	return api.AdjustSplitResponse{
		Split: convertSplitConfig(adjusted),
		Valid: adjusted.Validate() == nil,
	}, nil
}

func (s *BackendService) ListTasks(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListTasksParams](r)
	if err != nil {
		return nil, err
	}

	views, err := s.console.ListTasks(r.Context(), params.Page)
	if err != nil {
		return nil, err
	}
	return convertTasks(views), nil
}

func (s *BackendService) CreateTask(r *http.Request) (any, error) {
	req, err := ParseRequest[api.CreateTaskRequest](r)
	if err != nil {
		return nil, err
	}

	splits := split.Default()
	if req.Split != nil {
		splits = convertSplit(*req.Split)
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = client.SourceSingleSplit
	}

	createReq := console.CreateTaskRequest{
		ProjectName:       req.ProjectName,
		BaseModelId:       req.BaseModelId,
		Source:            source,
		Split:             splits,
		TrainFileIds:      req.TrainFileIds,
		ValidationFileIds: req.ValidationFileIds,
		BenchmarkFileIds:  req.BenchmarkFileIds,
		Hyperparameters:   convertHyperparameters(req.Hyperparameters),
	}

	if source == client.SourceSingleSplit && req.ValidationRunId != nil {
		upload, closeBlob, err := s.openValidatedDataset(r.Context(), *req.ValidationRunId)
		if err != nil {
			return nil, err
		}
		defer closeBlob()
		createReq.RawFile = upload
	}

	created, err := s.console.CreateTask(r.Context(), createReq)
	if err != nil {
		return nil, err
	}

	res := api.CreateTaskResponse{
		TaskId:          created.Task.ID(),
		DatasetConfigId: created.DatasetConfigId,
	}
	if created.UploadedFile != nil {
		id := created.UploadedFile.ID()
		res.UploadedFileId = &id
	}
	return res, nil
}

// openValidatedDataset opens the stored object of a validation run. Only runs
// that passed may be used to create a task.
func (s *BackendService) openValidatedDataset(ctx context.Context, runId uuid.UUID) (*console.Upload, func(), error) {
	run, err := database.GetValidationRun(ctx, s.db, runId)
	if err != nil {
		return nil, nil, err
	}
	if run.Status != database.RunPassed {
		return nil, nil, CodedErrorf(http.StatusConflict, "validation run %s has status %s, only %s runs can be used", runId, run.Status, database.RunPassed)
	}

	blob, err := s.storage.OpenBlob(ctx, run.ObjectKey)
	if err != nil {
		slog.Error("error opening validated dataset", "run_id", runId, "key", run.ObjectKey, "error", err)
		return nil, nil, CodedErrorf(http.StatusInternalServerError, "error opening validated dataset")
	}

	closeBlob := func() {
		if err := blob.Close(); err != nil {
			slog.Warn("error closing dataset blob", "run_id", runId, "error", err)
		}
	}
	return &console.Upload{Name: run.FileName, Blob: blob}, closeBlob, nil
}

func (s *BackendService) StartTask(r *http.Request) (any, error) {
	taskId, err := URLParamInt64(r, "task_id")
	if err != nil {
		return nil, err
	}
	return nil, s.console.StartTask(r.Context(), taskId)
}

func (s *BackendService) StopTask(r *http.Request) (any, error) {
	taskId, err := URLParamInt64(r, "task_id")
	if err != nil {
		return nil, err
	}
	return nil, s.console.StopTask(r.Context(), taskId)
}

func (s *BackendService) DeleteTask(r *http.Request) (any, error) {
	taskId, err := URLParamInt64(r, "task_id")
	if err != nil {
		return nil, err
	}
	return nil, s.console.DeleteTask(r.Context(), taskId)
}

func (s *BackendService) GetBalance(r *http.Request) (any, error) {
	view := s.console.Balance(r.Context())
	return api.Balance{Dollars: view.Dollars, Label: view.Label}, nil
}
