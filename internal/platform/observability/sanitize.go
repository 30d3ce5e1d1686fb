package observability

import (
	"strings"
	"unicode"
)

const maxFieldRunes = 256

// scrub drops control characters, other than common whitespace, and caps the
// rune count so a hostile value cannot inject log lines or bloat entries.
func scrub(value string, max int) string {
	if max <= 0 {
		max = maxFieldRunes
	}

	var b strings.Builder
	b.Grow(len(value))
	count := 0
	for _, r := range value {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		if count >= max {
			break
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}

// SanitizeRoute normalises a request path for logging.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return scrub(route, 180)
}

// SanitizeMethod normalises an HTTP method for logging.
func SanitizeMethod(method string) string {
	return scrub(method, 10)
}

// SanitizeUserID caps user identifiers before they reach log output.
func SanitizeUserID(uid string) string {
	return scrub(uid, 64)
}
