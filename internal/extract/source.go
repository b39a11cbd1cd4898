package extract

import (
	"strings"
	"unicode/utf8"
)

// decodeSource returns content as a string with invalid UTF-8 replaced and
// CRLF line endings normalized to LF so that line numbers match editors.
func decodeSource(content []byte) string {
	s := string(content)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\ufffd")
	}
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// lineRange returns lines [start, end] (1-indexed, inclusive) joined by newlines.
func lineRange(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}
