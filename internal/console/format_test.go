package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSizeMB(t *testing.T) {
	size := func(v int64) *int64 { return &v }

	assert.Equal(t, "-", FormatSizeMB(nil))
	assert.Equal(t, "0.00 MB", FormatSizeMB(size(0)))
	assert.Equal(t, "0.50 MB", FormatSizeMB(size(512*1024)))
	assert.Equal(t, "1.0 MB", FormatSizeMB(size(1024*1024)))
	assert.Equal(t, "500.0 MB", FormatSizeMB(size(500*1024*1024)))
}

func TestTruncateName(t *testing.T) {
	assert.Equal(t, "-", TruncateName("", 30))
	assert.Equal(t, "short.jsonl", TruncateName("short.jsonl", 30))
	assert.Equal(t, "abcdefghij", TruncateName("abcdefghij", 10))
	// keep 7: 4 in front, 3 at the back
	assert.Equal(t, "abcd...jkl", TruncateName("abcdefghijkl", 10))
	assert.Equal(t, "日本語...ァイル", TruncateName("日本語のとても長いファイル", 9))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "$1.23 USD", FormatAmount(123, ""))
	assert.Equal(t, "-$1.23 USD", FormatAmount(-123, "USD"))
	assert.Equal(t, "$0.00 EUR", FormatAmount(0, "EUR"))
}

func TestPrettifyType(t *testing.T) {
	assert.Equal(t, "-", PrettifyType(""))
	assert.Equal(t, "Top Up", PrettifyType("top_up"))
	assert.Equal(t, "Task Charge", PrettifyType("task_charge"))
}
