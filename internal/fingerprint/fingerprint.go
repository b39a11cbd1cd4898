// Package fingerprint computes normalized content hashes for code entities.
// Two sources that differ only in comments, indentation, or blank lines hash the same.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Algorithm is the tag prefixed to every hash produced by this package.
const Algorithm = "sha256"

const prefix = Algorithm + ":"

// DefaultCommentMarker is the line-comment marker used by Sum.
const DefaultCommentMarker = "#"

var commentMarkers = map[string]string{
	"python":     "#",
	"ruby":       "#",
	"bash":       "#",
	"yaml":       "#",
	"toml":       "#",
	"go":         "//",
	"javascript": "//",
	"typescript": "//",
	"rust":       "//",
	"java":       "//",
	"kotlin":     "//",
	"swift":      "//",
	"scala":      "//",
	"c":          "//",
	"cpp":        "//",
	"c_sharp":    "//",
	"php":        "//",
}

// CommentMarker returns the line-comment marker for language, or DefaultCommentMarker.
func CommentMarker(language string) string {
	if m, ok := commentMarkers[language]; ok {
		return m
	}
	return DefaultCommentMarker
}

// Sum returns the content hash of source using the default comment marker.
func Sum(source string) string {
	return hash(Normalize(source, DefaultCommentMarker))
}

// SumLanguage returns the content hash of source, stripping the line comments of language.
func SumLanguage(language, source string) string {
	return hash(Normalize(source, CommentMarker(language)))
}

func hash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(sum[:])
}

// Valid reports whether h looks like a hash produced by this package.
func Valid(h string) bool {
	if !strings.HasPrefix(h, prefix) {
		return false
	}
	hexPart := h[len(prefix):]
	if len(hexPart) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(hexPart)
	return err == nil
}

// AlgorithmOf returns the algorithm tag of h ("" if untagged).
func AlgorithmOf(h string) string {
	i := strings.IndexByte(h, ':')
	if i <= 0 {
		return ""
	}
	return h[:i]
}

// Normalize strips line comments outside string literals, trailing whitespace and
// blank lines, and collapses runs of spaces and tabs. Blank lines are dropped entirely
// so that deleting a comment-only line is indistinguishable from never having had it.
func Normalize(source, marker string) string {
	lines := strings.Split(source, "\n")
	kept := make([]string, 0, len(lines))
	open := ""
	for _, line := range lines {
		var i int
		if i, open = commentStart(line, marker, open); i >= 0 {
			line = line[:i]
		}
		line = collapseSpace(strings.TrimRight(line, " \t\r\f\v"))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// commentStart returns the byte offset of the first marker outside a string literal, or -1.
// open is the delimiter of a string still open from the previous line: a backtick raw
// string or a triple-quoted string. The delimiter still open at the end of line is returned.
func commentStart(line, marker, open string) (int, string) {
	for i := 0; i < len(line); {
		if open != "" {
			end := strings.Index(line[i:], open)
			if end < 0 {
				return -1, open
			}
			i += end + len(open)
			open = ""
			continue
		}
		rest := line[i:]
		switch {
		case strings.HasPrefix(rest, `"""`), strings.HasPrefix(rest, "'''"):
			open = rest[:3]
			i += 3
		case rest[0] == '`':
			open = "`"
			i++
		case rest[0] == '"' || rest[0] == '\'':
			j := 1
			for j < len(rest) && rest[j] != rest[0] {
				if rest[j] == '\\' {
					j++
				}
				j++
			}
			i += j + 1
		case marker != "" && strings.HasPrefix(rest, marker):
			return i, ""
		default:
			i++
		}
	}
	return -1, open
}

func collapseSpace(line string) string {
	if !strings.ContainsAny(line, " \t") {
		return line
	}
	var b strings.Builder
	b.Grow(len(line))
	prevSpace := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == ' ' || c == '\t' {
			if !prevSpace {
				b.WriteByte(' ')
			}
			prevSpace = true
			continue
		}
		prevSpace = false
		b.WriteByte(c)
	}
	return b.String()
}
