package integrationtests

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	backend "finetune-console/internal/api"
	"finetune-console/internal/client"
	"finetune-console/internal/console"
	"finetune-console/internal/core"
	"finetune-console/internal/database"
	"finetune-console/internal/dataset"
	"finetune-console/internal/tasks"
	"finetune-console/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type workflowEnv struct {
	router *chi.Mux
	worker *core.TaskProcessor
}

func setupWorkflow(t *testing.T, ctx context.Context) *workflowEnv {
	db := createDB(t)
	store := setupObjectStore(t, ctx)
	publisher, receiver := setupRabbitMQContainer(t, ctx)

	// Validation never reaches the fine-tuning API.
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"unavailable"}`, http.StatusServiceUnavailable)
	}))
	t.Cleanup(remote.Close)

	c := console.New(client.New(remote.URL, "", 5*time.Second), dataset.DefaultPipeline(), tasks.NewAdmissionController(tasks.DefaultPricing()))

	router := chi.NewRouter()
	backend.NewBackendService(db, store, publisher, c, nil).AddRoutes(router)

	worker := core.NewTaskProcessor(db, store, dataset.NewPipeline(dataset.Options{WindowSize: 32}), receiver, 100*time.Millisecond)

	return &workflowEnv{router: router, worker: worker}
}

func (env *workflowEnv) startWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		env.worker.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (env *workflowEnv) waitForRun(t *testing.T, runId uuid.UUID) api.ValidationRun {
	var run api.ValidationRun
	for i := 0; i < 100; i++ {
		require.NoError(t, httpRequest(env.router, "GET", fmt.Sprintf("/validations/%s", runId), nil, &run))
		if database.IsFinalRunStatus(run.Status) {
			return run
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("validation run %s did not finish, last status %s", runId, run.Status)
	return run
}

func TestValidationWorkflow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	env := setupWorkflow(t, ctx)
	env.startWorker(t)

	var passed api.CreateValidationResponse
	require.NoError(t, uploadRequest(env.router, "/validations", "train", "train.jsonl", validDataset, &passed))

	run := env.waitForRun(t, passed.RunId)
	assert.Equal(t, database.RunPassed, run.Status)
	assert.Equal(t, int64(2), run.RecordsChecked)
	assert.Nil(t, run.Error)
	assert.NotNil(t, run.CompletionTime)

	bad := validDataset + `{"messages":[{"role":"user","content":"hi"},{"role":"user","content":"again"}]}` + "\n"
	var failed api.CreateValidationResponse
	require.NoError(t, uploadRequest(env.router, "/validations", "validation", "val.jsonl", bad, &failed))

	run = env.waitForRun(t, failed.RunId)
	assert.Equal(t, database.RunFailed, run.Status)
	require.NotNil(t, run.Error)
	assert.Equal(t, string(dataset.SchemaError), run.Error.Kind)
	require.NotNil(t, run.Error.Line)
	assert.Equal(t, int64(3), *run.Error.Line)

	var runs []api.ValidationRun
	require.NoError(t, httpRequest(env.router, "GET", "/validations", nil, &runs))
	assert.Len(t, runs, 2)
}

func TestCancelQueuedValidation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	env := setupWorkflow(t, ctx)

	var created api.CreateValidationResponse
	require.NoError(t, uploadRequest(env.router, "/validations", "train", "train.jsonl", validDataset, &created))

	require.NoError(t, httpRequest(env.router, "POST", fmt.Sprintf("/validations/%s/cancel", created.RunId), nil, nil))

	// The queued message is still delivered but the worker must skip it.
	env.startWorker(t)

	var next api.CreateValidationResponse
	require.NoError(t, uploadRequest(env.router, "/validations", "train", "next.jsonl", validDataset, &next))
	run := env.waitForRun(t, next.RunId)
	assert.Equal(t, database.RunPassed, run.Status)

	var cancelled api.ValidationRun
	require.NoError(t, httpRequest(env.router, "GET", fmt.Sprintf("/validations/%s", created.RunId), nil, &cancelled))
	assert.Equal(t, database.RunCancelled, cancelled.Status)
	assert.Equal(t, int64(0), cancelled.LinesScanned)
}
