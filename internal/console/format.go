package console

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

const placeholder = "-"

func FormatSizeMB(bytes *int64) string {
	if bytes == nil {
		return placeholder
	}
	mb := float64(*bytes) / (1024 * 1024)
	if mb < 1 {
		return fmt.Sprintf("%.2f MB", mb)
	}
	return fmt.Sprintf("%.1f MB", mb)
}

// TruncateName shortens name to at most limit characters by replacing its
// middle with "...".
func TruncateName(name string, limit int) string {
	if name == "" {
		return placeholder
	}
	runes := []rune(name)
	if len(runes) <= limit || limit <= 3 {
		return name
	}
	keep := limit - 3
	front := (keep + 1) / 2
	back := keep / 2
	return string(runes[:front]) + "..." + string(runes[len(runes)-back:])
}

// FormatAmount renders a ledger amount given in cents, e.g. "-$1.25 USD".
func FormatAmount(cents float64, currency string) string {
	if currency == "" {
		currency = "USD"
	}
	dollars := cents / 100
	sign := ""
	if dollars < 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s$%.2f %s", sign, math.Abs(dollars), currency)
}

// PrettifyType turns a snake_case transaction type into title case.
func PrettifyType(value string) string {
	if value == "" {
		return placeholder
	}
	words := strings.Split(value, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
