package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"finetune-console/internal/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestObjectStore(t *testing.T) (*LocalObjectStore, string) {
	t.Helper()
	dir := t.TempDir()
	objectStore, err := NewLocalObjectStore(dir)
	require.NoError(t, err)
	return objectStore, dir
}

func TestLocalObjectStore_PutObject(t *testing.T) {
	objectStore, baseDir := setupTestObjectStore(t)

	content := "Test content"
	require.NoError(t, objectStore.PutObject(context.Background(), "runs/abc/train.jsonl", strings.NewReader(content)))

	data, err := os.ReadFile(filepath.Join(baseDir, "runs", "abc", "train.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestLocalObjectStore_OpenBlob(t *testing.T) {
	objectStore, _ := setupTestObjectStore(t)
	ctx := context.Background()

	content := `{"messages":[{"role":"user","content":"hi"}]}` + "\n"
	require.NoError(t, objectStore.PutObject(ctx, "data.jsonl", strings.NewReader(content)))

	blob, err := objectStore.OpenBlob(ctx, "data.jsonl")
	require.NoError(t, err)
	defer blob.Close()

	assert.Equal(t, int64(len(content)), blob.Len())

	res, err := dataset.DefaultPipeline().Validate(ctx, "data.jsonl", blob)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Records)
}

func TestLocalObjectStore_OpenMissing(t *testing.T) {
	objectStore, _ := setupTestObjectStore(t)

	_, err := objectStore.OpenBlob(context.Background(), "missing.jsonl")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalObjectStore_DeleteObject(t *testing.T) {
	objectStore, baseDir := setupTestObjectStore(t)
	ctx := context.Background()

	require.NoError(t, objectStore.PutObject(ctx, "a.jsonl", strings.NewReader("x")))
	require.NoError(t, objectStore.DeleteObject(ctx, "a.jsonl"))
	_, err := os.Stat(filepath.Join(baseDir, "a.jsonl"))
	assert.True(t, os.IsNotExist(err))

	// Deleting twice is not an error.
	require.NoError(t, objectStore.DeleteObject(ctx, "a.jsonl"))
}

func TestLocalObjectStore_RejectsEscapingKeys(t *testing.T) {
	objectStore, _ := setupTestObjectStore(t)

	err := objectStore.PutObject(context.Background(), "../outside.jsonl", strings.NewReader("x"))
	assert.Error(t, err)
}
