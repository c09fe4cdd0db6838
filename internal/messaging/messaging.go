package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	ValidationQueue = "validation_queue"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	// Requeue returns the task to the queue for another worker, used when
	// processing is interrupted by shutdown.
	Requeue() error

	Reject() error
}

// ValidationPayload asks a worker to scan a stored dataset object.
type ValidationPayload struct {
	RunId     uuid.UUID
	ObjectKey string
	FileName  string
}

type Publisher interface {
	PublishValidationTask(ctx context.Context, payload ValidationPayload) error

	Close()
}

type Receiver interface {
	Tasks() <-chan Task

	Close()
}
