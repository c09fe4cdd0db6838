package console

import (
	"context"
	"fmt"
	"log/slog"

	"finetune-console/internal/client"
	"finetune-console/internal/dataset"
)

// CheckUploadRole accepts the roles a user may upload a dataset file as.
func CheckUploadRole(role string) error {
	switch role {
	case client.RoleTrain, client.RoleValidation, client.RoleBenchmark:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
}

// ValidateAndUpload streams the blob through the validation pipeline and
// only uploads it if every line passes. The first validation error is
// returned unchanged and nothing is sent.
func (c *Console) ValidateAndUpload(ctx context.Context, role, name string, blob dataset.Blob) (client.File, error) {
	if err := CheckUploadRole(role); err != nil {
		return client.File{}, err
	}

	if err := c.pipeline.ValidateFile(ctx, name, blob); err != nil {
		slog.Info("dataset rejected before upload", "file", name, "role", role, "error", err)
		return client.File{}, err
	}

	file, err := c.remote.UploadFile(ctx, role, name, dataset.NewBlobReader(ctx, blob))
	if err != nil {
		return client.File{}, err
	}

	slog.Info("dataset uploaded", "file", name, "role", role, "file_id", file.ID())
	return file, nil
}

// ReplaceFile uploads a new version of a file and then deletes the old one.
// The delete is best effort: a failure is logged but the upload stands.
func (c *Console) ReplaceFile(ctx context.Context, oldFileId int64, role, name string, blob dataset.Blob) (client.File, error) {
	file, err := c.ValidateAndUpload(ctx, role, name, blob)
	if err != nil {
		return client.File{}, err
	}

	if err := c.remote.DeleteFile(ctx, oldFileId); err != nil {
		slog.Warn("unable to delete replaced file", "file_id", oldFileId, "error", err)
	}

	return file, nil
}

func (c *Console) ListFiles(ctx context.Context, page int) ([]client.File, error) {
	return c.remote.ListFiles(ctx, client.FilesPageSize, max(page, 0)*client.FilesPageSize)
}

func (c *Console) DeleteFile(ctx context.Context, fileId int64) error {
	return c.remote.DeleteFile(ctx, fileId)
}

func (c *Console) ggufFiles(ctx context.Context) map[int64]client.File {
	files, err := c.remote.ListFiles(ctx, client.GGUFLookupLimit, 0)
	if err != nil {
		slog.Warn("unable to load gguf files", "error", err)
		return map[int64]client.File{}
	}

	gguf := make(map[int64]client.File)
	for _, f := range files {
		if f.IsGGUF() && f.ID() != 0 {
			gguf[f.ID()] = f
		}
	}
	return gguf
}
