package dataset

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

const DefaultWindowSize = 512 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type Line struct {
	Number int
	Text   string
}

type LineIterator func(yield func(line Line, err error) bool)

// LineScanner reads a Blob one window at a time and yields complete lines.
// The unterminated tail of each window is carried into the next read, so at
// most one window plus one partial line is held in memory. Splitting happens
// on raw bytes, and '\n' never occurs inside a multi-byte UTF-8 sequence, so a
// window boundary inside a codepoint is harmless.
//
// A LineScanner is single-use and not safe for concurrent use.
type LineScanner struct {
	blob   Blob
	window int64

	cursor  int64
	carry   []byte
	pending [][]byte
	lineNo  int
	flushed bool

	progress func(read, total int64)
}

func NewLineScanner(blob Blob, window int64) *LineScanner {
	if window <= 0 {
		window = DefaultWindowSize
	}
	return &LineScanner{blob: blob, window: window}
}

// OnProgress registers a callback invoked after every window read.
func (s *LineScanner) OnProgress(fn func(read, total int64)) {
	s.progress = fn
}

// Next returns the next line, or io.EOF once the blob is exhausted. Blank
// lines are returned with their ordinal; callers decide whether to skip them.
func (s *LineScanner) Next(ctx context.Context) (Line, error) {
	for len(s.pending) == 0 {
		if s.cursor >= s.blob.Len() {
			return s.flush()
		}
		if err := s.readWindow(ctx); err != nil {
			return Line{}, err
		}
	}

	segment := s.pending[0]
	s.pending = s.pending[1:]
	return s.emit(segment), nil
}

func (s *LineScanner) Lines(ctx context.Context) LineIterator {
	return func(yield func(Line, error) bool) {
		for {
			line, err := s.Next(ctx)
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Line{}, err)
				return
			}
			if !yield(line, nil) {
				return
			}
		}
	}
}

// LinesRead is the ordinal of the last line returned.
func (s *LineScanner) LinesRead() int {
	return s.lineNo
}

func (s *LineScanner) BytesRead() int64 {
	return s.cursor
}

func (s *LineScanner) readWindow(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	total := s.blob.Len()
	end := min(s.cursor+s.window, total)

	chunk, err := s.blob.ReadRange(ctx, s.cursor, end)
	if err != nil {
		return fmt.Errorf("error reading window at offset %d: %w", s.cursor, err)
	}
	if int64(len(chunk)) != end-s.cursor {
		return fmt.Errorf("short read at offset %d: expected %d bytes, got %d: %w", s.cursor, end-s.cursor, len(chunk), io.ErrUnexpectedEOF)
	}
	s.cursor = end

	data := append(s.carry, chunk...)
	segments := bytes.Split(data, []byte{'\n'})

	s.carry = bytes.Clone(segments[len(segments)-1])
	s.pending = segments[:len(segments)-1]

	if s.progress != nil {
		s.progress(s.cursor, total)
	}
	return nil
}

func (s *LineScanner) flush() (Line, error) {
	if s.flushed {
		return Line{}, io.EOF
	}
	s.flushed = true

	last := s.carry
	s.carry = nil
	if len(bytes.TrimSpace(last)) == 0 {
		return Line{}, io.EOF
	}

	return s.emit(last), nil
}

func (s *LineScanner) emit(segment []byte) Line {
	s.lineNo++
	segment = trimCR(segment)
	if s.lineNo == 1 {
		segment = bytes.TrimPrefix(segment, utf8BOM)
	}
	return Line{Number: s.lineNo, Text: string(segment)}
}

func trimCR(b []byte) []byte {
	return bytes.TrimSuffix(b, []byte{'\r'})
}
