package integrationtests

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"finetune-console/internal/messaging"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, receiver messaging.Receiver) messaging.Task {
	select {
	case task := <-receiver.Tasks():
		return task
	case <-time.After(10 * time.Second):
		t.Fatal("Timed out waiting for task")
	}
	return nil
}

func TestRabbitMQ(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	publisher, receiver := setupRabbitMQContainer(t, ctx)

	t.Run("Publish and Receive ValidationTask", func(t *testing.T) {
		payload := messaging.ValidationPayload{RunId: uuid.New(), ObjectKey: "validations/x/train.jsonl", FileName: "train.jsonl"}
		require.NoError(t, publisher.PublishValidationTask(ctx, payload))

		task := receive(t, receiver)
		assert.Equal(t, messaging.ValidationQueue, task.Type())

		var receivedPayload messaging.ValidationPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &receivedPayload))
		assert.Equal(t, payload, receivedPayload)

		require.NoError(t, task.Ack())
	})

	t.Run("Nacked Task Is Not Redelivered", func(t *testing.T) {
		first := messaging.ValidationPayload{RunId: uuid.New(), ObjectKey: "validations/y/train.jsonl", FileName: "train.jsonl"}
		require.NoError(t, publisher.PublishValidationTask(ctx, first))

		task := receive(t, receiver)
		require.NoError(t, task.Nack())

		second := messaging.ValidationPayload{RunId: uuid.New(), ObjectKey: "validations/z/train.jsonl", FileName: "train.jsonl"}
		require.NoError(t, publisher.PublishValidationTask(ctx, second))

		next := receive(t, receiver)
		var receivedPayload messaging.ValidationPayload
		require.NoError(t, json.Unmarshal(next.Payload(), &receivedPayload))
		assert.Equal(t, second.RunId, receivedPayload.RunId)

		require.NoError(t, next.Ack())
	})

	t.Run("Requeued Task Is Redelivered", func(t *testing.T) {
		payload := messaging.ValidationPayload{RunId: uuid.New(), ObjectKey: "validations/r/train.jsonl", FileName: "train.jsonl"}
		require.NoError(t, publisher.PublishValidationTask(ctx, payload))

		task := receive(t, receiver)
		require.NoError(t, task.Requeue())

		redelivered := receive(t, receiver)
		var receivedPayload messaging.ValidationPayload
		require.NoError(t, json.Unmarshal(redelivered.Payload(), &receivedPayload))
		assert.Equal(t, payload.RunId, receivedPayload.RunId)

		require.NoError(t, redelivered.Ack())
	})
}
