package textutil

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var plainTextPolicy = bluemonday.StrictPolicy()

// SanitizePlainText strips all markup from user supplied text and collapses
// runs of whitespace. Used for product descriptions and customer notes which
// are rendered verbatim in receipts and exports.
func SanitizePlainText(value string) string {
	cleaned := plainTextPolicy.Sanitize(value)
	fields := strings.Fields(cleaned)
	return strings.Join(fields, " ")
}

// SanitizeName normalises a display name: markup removed, whitespace
// collapsed, and the result truncated to limit runes.
func SanitizeName(value string, limit int) string {
	return Truncate(SanitizePlainText(value), limit)
}

// Truncate caps value at limit runes, never splitting a multi-byte character.
func Truncate(value string, limit int) string {
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return strings.TrimSpace(string(runes[:limit]))
}
