package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const (
	DatasetExtension = ".jsonl"
	MaxFileSizeBytes = 500 * 1024 * 1024
)

type Options struct {
	WindowSize   int64
	MaxSizeBytes int64
	Extension    string

	// Progress, if set, is called after every window with the bytes consumed
	// so far and the blob length.
	Progress func(read, total int64)
}

type Result struct {
	Lines   int
	Records int
	Bytes   int64
}

// Pipeline validates whole dataset files before they are uploaded. It is
// stateless between calls; every call gets its own scanner, so concurrent
// validations of different files are independent.
type Pipeline struct {
	opts Options
}

func NewPipeline(opts Options) *Pipeline {
	if opts.WindowSize <= 0 {
		opts.WindowSize = DefaultWindowSize
	}
	if opts.MaxSizeBytes <= 0 {
		opts.MaxSizeBytes = MaxFileSizeBytes
	}
	if opts.Extension == "" {
		opts.Extension = DatasetExtension
	}
	return &Pipeline{opts: opts}
}

func DefaultPipeline() *Pipeline {
	return NewPipeline(Options{})
}

// CheckFile enforces the name and size preconditions. It never reads content.
func (p *Pipeline) CheckFile(name string, size int64) error {
	if !strings.HasSuffix(strings.ToLower(name), p.opts.Extension) {
		return &FileError{
			Name:    name,
			Size:    size,
			Message: fmt.Sprintf("Only %s files are allowed.", p.opts.Extension),
			Err:     ErrUnsupportedExtension,
		}
	}

	if size > p.opts.MaxSizeBytes {
		return &FileError{
			Name:    name,
			Size:    size,
			Message: fmt.Sprintf("File must be %d MB or smaller.", p.opts.MaxSizeBytes/(1024*1024)),
			Err:     ErrFileTooLarge,
		}
	}

	return nil
}

func (p *Pipeline) ValidateFile(ctx context.Context, name string, blob Blob) error {
	_, err := p.Validate(ctx, name, blob)
	return err
}

// Validate checks the file preconditions, then scans the blob top to bottom
// and returns the first validation error. If ctx is cancelled mid-scan the
// context error is returned and no validation result is reported.
func (p *Pipeline) Validate(ctx context.Context, name string, blob Blob) (Result, error) {
	if err := p.CheckFile(name, blob.Len()); err != nil {
		return Result{}, err
	}

	scanner := NewLineScanner(blob, p.opts.WindowSize)
	scanner.OnProgress(p.opts.Progress)

	cancelled := func(err error) (Result, error) {
		slog.Info("dataset validation cancelled", "file", name, "bytes_read", scanner.BytesRead())
		return Result{}, fmt.Errorf("validation of %s cancelled: %w", name, err)
	}

	var res Result
	for line, err := range scanner.Lines(ctx) {
		// A window holds many lines, so cancellation is checked per line.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return cancelled(ctxErr)
		}
		if err != nil {
			return Result{}, fmt.Errorf("error scanning %s: %w", name, err)
		}

		res.Lines = line.Number
		if strings.TrimSpace(line.Text) == "" {
			continue
		}

		if _, err := ValidateRecord(line.Text, line.Number); err != nil {
			return res, err
		}
		res.Records++
	}

	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}

	res.Bytes = scanner.BytesRead()
	return res, nil
}
