// Package lodfile reads and writes .lod files: per-source-file listings of entity
// signatures annotated with @lod description comments.
package lodfile

import (
	"regexp"
	"strings"
)

// Extension is appended to the source file name.
const Extension = ".lod"

var (
	commentRe    = regexp.MustCompile(`^#\s*@lod\s+(\w+):\s*(.*)$`)
	hashPrefixRe = regexp.MustCompile(`^sha256:[a-f0-9]{64}\b`)
)

// Comment is one @lod annotation block. A block without a hash at the top of a
// file is the module description.
type Comment struct {
	Hash        string `json:"hash,omitempty"`
	Stale       bool   `json:"stale"`
	Description string `json:"description"`
}

// complete reports whether c carries enough to be an entity annotation.
func (c Comment) complete() bool {
	return c.Hash != "" && c.Description != ""
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// Parse extracts every @lod comment block from content. Multi-line descriptions are
// rejoined with newlines.
func Parse(content string) []Comment {
	var comments []Comment
	var cur Comment
	inDescription := false
	skipping := false // inside a block whose hash line was malformed

	flush := func() {
		if cur.complete() || (cur.Hash == "" && cur.Description != "" && len(comments) == 0) {
			comments = append(comments, cur)
		}
		cur = Comment{}
	}

	for _, line := range strings.Split(content, "\n") {
		m := commentRe.FindStringSubmatch(line)
		if m == nil {
			trimmed := strings.TrimSpace(line)
			if inDescription && strings.HasPrefix(trimmed, "#") {
				cur.Description += "\n" + strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
				continue
			}
			inDescription = false
			continue
		}

		key, value := strings.ToLower(m[1]), strings.TrimSpace(m[2])
		switch key {
		case "hash":
			parts := strings.Fields(value)
			if len(parts) == 0 || !hashPrefixRe.MatchString(parts[0]) {
				flush()
				skipping, inDescription = true, false
				continue
			}
			skipping = false
			if cur.Hash != "" || cur.Description != "" {
				flush()
			}
			cur.Hash = parts[0]
			for _, part := range parts[1:] {
				if v, ok := strings.CutPrefix(part, "stale:"); ok {
					cur.Stale = parseBool(v)
				}
			}
			inDescription = false
		case "stale":
			if skipping {
				continue
			}
			cur.Stale = parseBool(value)
		case "description":
			if skipping {
				continue
			}
			if cur.Description != "" {
				cur.Description += "\n" + value
			} else {
				cur.Description = value
			}
			inDescription = true
		}
	}
	flush()
	return comments
}

// FormatComment renders c followed by signature, without a trailing newline.
func FormatComment(c Comment, signature string) string {
	var lines []string
	if c.Hash != "" {
		stale := "stale:false"
		if c.Stale {
			stale = "stale:true"
		}
		lines = append(lines, "# @lod hash:"+c.Hash+" "+stale)
	}
	if c.Description != "" {
		desc := strings.Split(c.Description, "\n")
		lines = append(lines, "# @lod description:"+desc[0])
		for _, l := range desc[1:] {
			lines = append(lines, "# "+l)
		}
	}
	if signature != "" {
		lines = append(lines, signature)
	}
	return strings.Join(lines, "\n")
}
