package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueue(t *testing.T) {
	queue := NewInMemoryQueue()

	payload := ValidationPayload{RunId: uuid.New(), ObjectKey: "validations/a/train.jsonl", FileName: "train.jsonl"}
	require.NoError(t, queue.PublishValidationTask(context.Background(), payload))

	select {
	case task := <-queue.Tasks():
		assert.Equal(t, ValidationQueue, task.Type())

		var received ValidationPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &received))
		assert.Equal(t, payload, received)

		assert.NoError(t, task.Ack())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for task")
	}
}

func TestInMemoryQueueClose(t *testing.T) {
	queue := NewInMemoryQueue()
	queue.Close()
	queue.Close()

	_, ok := <-queue.Tasks()
	assert.False(t, ok)

	err := queue.PublishValidationTask(context.Background(), ValidationPayload{RunId: uuid.New()})
	assert.Error(t, err)
}
