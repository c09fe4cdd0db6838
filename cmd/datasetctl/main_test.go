package main

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"finetune-console/internal/split"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDataset = `{"messages":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}

{"messages":[{"role":"user","content":"bye"},{"role":"assistant","content":"see you"}]}
`

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateAcceptsDataset(t *testing.T) {
	path := writeFile(t, "train.jsonl", validDataset)

	out, err := runCommand(t, "validate", "--no-progress", "--window", "7", path)
	require.NoError(t, err)
	assert.Equal(t, "train.jsonl: ok (3 lines, 2 records)\n", out)
}

func TestValidateRejectsDataset(t *testing.T) {
	path := writeFile(t, "train.jsonl", validDataset+"not json\n")

	_, err := runCommand(t, "validate", "--no-progress", path)
	require.Error(t, err)

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, err.Error(), "Line 4")
}

func TestValidateRejectsExtension(t *testing.T) {
	path := writeFile(t, "train.csv", "a,b\n")

	_, err := runCommand(t, "validate", "--no-progress", path)
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
}

func TestValidateMissingFile(t *testing.T) {
	_, err := runCommand(t, "validate", "--no-progress", filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)

	var rejected *RejectedError
	assert.False(t, errors.As(err, &rejected))
}

func TestSplitAdjust(t *testing.T) {
	out, err := runCommand(t, "split", "adjust", "train", "70")
	require.NoError(t, err)
	assert.Contains(t, out, "train=70 validation=10 benchmark=10")
	assert.Contains(t, out, "not submittable")

	out, err = runCommand(t, "split", "adjust", "--train", "80", "--validation", "10", "--benchmark", "5", "benchmark", "10")
	require.NoError(t, err)
	assert.Equal(t, "train=80 validation=10 benchmark=10\n", out)

	_, err = runCommand(t, "split", "adjust", "holdout", "10")
	assert.Error(t, err)
}

func TestSplitAdjustClampsStartingSplit(t *testing.T) {
	out, err := runCommand(t, "split", "adjust", "--train=-50", "--validation", "10", "--benchmark", "10", "validation", "95")
	require.NoError(t, err)
	assert.Equal(t, "train=0 validation=95 benchmark=5\n", out)
}

func TestSplitAdjustHelpShowsDefault(t *testing.T) {
	out, err := runCommand(t, "split", "adjust", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "defaults to "+split.Default().String())
}

func TestCost(t *testing.T) {
	out, err := runCommand(t, "cost", "--model-id", "1", "--epochs", "3")
	require.NoError(t, err)
	assert.Equal(t, "expected cost: $3.00\n", out)

	out, err = runCommand(t, "cost", "--model-id", "1", "--epochs", "3", "--balance", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "cannot start")

	out, err = runCommand(t, "cost", "--model-id", "1", "--epochs", "3", "--balance", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "can start")
}

func TestBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/balance" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"balance_dollars": 12.5}`))
	}))
	defer server.Close()

	t.Setenv("FINETUNE_API_URL", server.URL)

	out, err := runCommand(t, "balance")
	require.NoError(t, err)
	assert.Equal(t, "$12.50\n", out)
}

func TestRemoteCommandsNeedAPIURL(t *testing.T) {
	t.Setenv("FINETUNE_API_URL", "")

	_, err := runCommand(t, "tasks", "list")
	assert.Error(t, err)
}

func TestTaskActionRejectsBadId(t *testing.T) {
	_, err := runCommand(t, "tasks", "start", "abc")
	assert.ErrorContains(t, err, "invalid id")
}
