package storage

import (
	"context"
	"errors"
	"io"

	"finetune-console/internal/dataset"
)

var ErrObjectNotFound = errors.New("object not found")

// Blob is a stored object opened for ranged reads by the validation pipeline.
type Blob interface {
	dataset.Blob
	io.Closer
}

type ObjectStore interface {
	PutObject(ctx context.Context, key string, data io.Reader) error

	OpenBlob(ctx context.Context, key string) (Blob, error)

	DeleteObject(ctx context.Context, key string) error
}
