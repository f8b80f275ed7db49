package util

import "strings"

// TruncateRunes returns s cut to at most limit runes. Multi-byte text is never
// split in the middle of a rune.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// NormalizeTitle collapses internal whitespace and trims the ends, so that
// differently spaced variants of the same article title compare equal.
func NormalizeTitle(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SanitizePostgresText strips invalid UTF-8 and NUL bytes, which postgres
// rejects in text columns. Applied to free-form text at the ingest boundary
// so a stray escape cannot poison a message.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}
