package dataset

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingBlob struct {
	Blob
	reads int
}

func (b *countingBlob) ReadRange(ctx context.Context, start, end int64) ([]byte, error) {
	b.reads++
	return b.Blob.ReadRange(ctx, start, end)
}

func collectLines(t *testing.T, blob Blob, window int64) []Line {
	t.Helper()
	var lines []Line
	for line, err := range NewLineScanner(blob, window).Lines(context.Background()) {
		require.NoError(t, err)
		lines = append(lines, line)
	}
	return lines
}

func TestLineScannerEmptyBlob(t *testing.T) {
	blob := &countingBlob{Blob: BytesBlob(nil)}
	assert.Empty(t, collectLines(t, blob, 4))
	assert.Equal(t, 0, blob.reads)
}

func TestLineScannerFinalLineWithoutNewline(t *testing.T) {
	for _, window := range []int64{1, 2, 3, 5, 64} {
		lines := collectLines(t, BytesBlob("first\nsecond\nthird"), window)
		assert.Equal(t, []Line{
			{Number: 1, Text: "first"},
			{Number: 2, Text: "second"},
			{Number: 3, Text: "third"},
		}, lines, "window %d", window)
	}
}

func TestLineScannerTrailingNewline(t *testing.T) {
	lines := collectLines(t, BytesBlob("a\nb\n"), 3)
	assert.Equal(t, []Line{{Number: 1, Text: "a"}, {Number: 2, Text: "b"}}, lines)
}

func TestLineScannerCRLFAndBlankLines(t *testing.T) {
	lines := collectLines(t, BytesBlob("a\r\n\r\nb\r\n  \n"), 2)
	assert.Equal(t, []Line{
		{Number: 1, Text: "a"},
		{Number: 2, Text: ""},
		{Number: 3, Text: "b"},
		{Number: 4, Text: "  "},
	}, lines)
}

func TestLineScannerBlankTailIsDropped(t *testing.T) {
	lines := collectLines(t, BytesBlob("a\n   \r"), 4)
	assert.Equal(t, []Line{{Number: 1, Text: "a"}}, lines)
}

func TestLineScannerMultiByteAcrossWindows(t *testing.T) {
	text := "héllo wörld\n日本語のテキスト\n🙂🙂🙂"
	for window := int64(1); window <= 8; window++ {
		lines := collectLines(t, BytesBlob(text), window)
		require.Len(t, lines, 3, "window %d", window)
		assert.Equal(t, "héllo wörld", lines[0].Text)
		assert.Equal(t, "日本語のテキスト", lines[1].Text)
		assert.Equal(t, "🙂🙂🙂", lines[2].Text)
	}
}

func TestLineScannerStripsByteOrderMark(t *testing.T) {
	lines := collectLines(t, BytesBlob("\xEF\xBB\xBFfirst\nsecond"), 2)
	assert.Equal(t, "first", lines[0].Text)
}

func TestLineScannerReadsWindowByWindow(t *testing.T) {
	blob := &countingBlob{Blob: BytesBlob(strings.Repeat("x", 10) + "\n" + strings.Repeat("y", 9))}
	scanner := NewLineScanner(blob, 4)

	line, err := scanner.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 10), line.Text)
	assert.Equal(t, 3, blob.reads)

	line, err = scanner.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("y", 9), line.Text)
	assert.Equal(t, 5, blob.reads)

	_, err = scanner.Next(context.Background())
	assert.Equal(t, io.EOF, err)

	_, err = scanner.Next(context.Background())
	assert.Equal(t, io.EOF, err, "scanner is not restartable")
}

func TestLineScannerProgress(t *testing.T) {
	var calls [][2]int64
	scanner := NewLineScanner(BytesBlob("abcdefghij"), 4)
	scanner.OnProgress(func(read, total int64) {
		calls = append(calls, [2]int64{read, total})
	})

	for _, err := range scanner.Lines(context.Background()) {
		require.NoError(t, err)
	}
	assert.Equal(t, [][2]int64{{4, 10}, {8, 10}, {10, 10}}, calls)
}

func TestLineScannerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	blob := &countingBlob{Blob: BytesBlob("aaaa\nbbbb\ncccc\n")}
	scanner := NewLineScanner(blob, 5)

	line, err := scanner.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "aaaa", line.Text)

	cancel()

	_, err = scanner.Next(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, blob.reads)
}

func TestFileBlob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("line one\nline two"), 0o644))

	blob, err := OpenFileBlob(path)
	require.NoError(t, err)
	defer blob.Close()

	assert.Equal(t, int64(17), blob.Len())

	data, err := blob.ReadRange(context.Background(), 5, 17)
	require.NoError(t, err)
	assert.Equal(t, "one\nline two", string(data))

	_, err = blob.ReadRange(context.Background(), 10, 18)
	assert.Error(t, err)

	lines := collectLines(t, blob, 3)
	assert.Equal(t, []Line{{Number: 1, Text: "line one"}, {Number: 2, Text: "line two"}}, lines)
}

func TestBlobReader(t *testing.T) {
	content := strings.Repeat("0123456789", 100)
	blob := &countingBlob{Blob: BytesBlob(content)}

	data, err := io.ReadAll(NewBlobReader(context.Background(), blob))
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
	assert.Positive(t, blob.reads)

	buf := make([]byte, 4)
	reader := NewBlobReader(context.Background(), BytesBlob("abcdef"))
	n, err := reader.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(buf[:n]))
	n, err = reader.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ef", string(buf[:n]))
	_, err = reader.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}
