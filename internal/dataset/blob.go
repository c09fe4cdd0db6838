package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// Blob is a read-only, fixed-length byte source that supports ranged reads.
// ReadRange returns the bytes in [start, end).
type Blob interface {
	Len() int64

	ReadRange(ctx context.Context, start, end int64) ([]byte, error)
}

type BytesBlob []byte

var _ Blob = BytesBlob(nil)

func (b BytesBlob) Len() int64 {
	return int64(len(b))
}

func (b BytesBlob) ReadRange(ctx context.Context, start, end int64) ([]byte, error) {
	if err := checkRange(start, end, b.Len()); err != nil {
		return nil, err
	}
	return b[start:end], nil
}

type FileBlob struct {
	file *os.File
	size int64
}

var _ Blob = (*FileBlob)(nil)

func OpenFileBlob(path string) (*FileBlob, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}

	return &FileBlob{file: file, size: info.Size()}, nil
}

func (b *FileBlob) Name() string {
	return b.file.Name()
}

func (b *FileBlob) Len() int64 {
	return b.size
}

func (b *FileBlob) ReadRange(ctx context.Context, start, end int64) ([]byte, error) {
	if err := checkRange(start, end, b.size); err != nil {
		return nil, err
	}

	buf := make([]byte, end-start)
	n, err := b.file.ReadAt(buf, start)
	if err != nil && !(errors.Is(err, io.EOF) && int64(n) == end-start) {
		return nil, fmt.Errorf("failed to read bytes [%d, %d) from %s: %w", start, end, b.file.Name(), err)
	}
	return buf[:n], nil
}

func (b *FileBlob) Close() error {
	return b.file.Close()
}

func checkRange(start, end, size int64) error {
	if start < 0 || end < start || end > size {
		return fmt.Errorf("invalid byte range [%d, %d) for blob of size %d", start, end, size)
	}
	return nil
}

// BlobReader adapts a Blob to io.Reader so a validated blob can be handed to
// an upload. Each Read is one ranged read of at most len(p) bytes.
type BlobReader struct {
	ctx    context.Context
	blob   Blob
	offset int64
}

func NewBlobReader(ctx context.Context, blob Blob) *BlobReader {
	return &BlobReader{ctx: ctx, blob: blob}
}

func (r *BlobReader) Read(p []byte) (int, error) {
	if r.offset >= r.blob.Len() {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	end := min(r.offset+int64(len(p)), r.blob.Len())
	chunk, err := r.blob.ReadRange(r.ctx, r.offset, end)
	if err != nil {
		return 0, err
	}
	n := copy(p, chunk)
	r.offset += int64(n)
	return n, nil
}
