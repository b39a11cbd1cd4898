package extract

import (
	"regexp"
	"strings"

	"github.com/hyperjump/codelod/internal/models"
)

var pyHeader = regexp.MustCompile(`^([ \t]*)(?:async[ \t]+)?(def|class)[ \t]+([A-Za-z_][A-Za-z0-9_]*)`)

// PythonParser extracts classes and functions by indentation. Decorators directly
// above a definition belong to it. Functions and classes nested anywhere inside a
// class take the nearest enclosing class as parent.
type PythonParser struct{}

func (PythonParser) Language() string { return "python" }

type pyLine struct {
	text     string
	indent   int
	blank    bool // blank or comment-only
	inString bool // starts inside a triple-quoted string
}

type pyScope struct {
	indent int
	name   string
	class  bool
}

func (PythonParser) Parse(path string, source string) ([]models.Entity, error) {
	raw := strings.Split(source, "\n")
	lines := classifyPython(raw)

	entities := []models.Entity{moduleEntity(path, source)}
	var stack []pyScope

	for i, ln := range lines {
		if ln.inString {
			continue
		}
		m := pyHeader.FindStringSubmatch(ln.text)
		if m == nil {
			continue
		}
		indent := ln.indent
		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}
		parent := ""
		for j := len(stack) - 1; j >= 0; j-- {
			if stack[j].class {
				parent = stack[j].name
				break
			}
		}

		start := i
		for start > 0 {
			prev := lines[start-1]
			if prev.inString || prev.indent != indent || !strings.HasPrefix(strings.TrimSpace(prev.text), "@") {
				break
			}
			start--
		}
		end := pyBlockEnd(lines, i, indent)

		scope := models.ScopeFunction
		if m[2] == "class" {
			scope = models.ScopeClass
		}
		entities = append(entities, models.Entity{
			Scope: scope,
			Name:  m[3],
			Location: models.Location{
				Path:      path,
				StartLine: start + 1,
				EndLine:   end + 1,
			},
			Source:     lineRange(raw, start+1, end+1),
			ParentName: parent,
		})
		stack = append(stack, pyScope{indent: indent, name: m[3], class: scope == models.ScopeClass})
	}
	return entities, nil
}

// pyBlockEnd returns the index of the last line of the block whose header is at index header.
func pyBlockEnd(lines []pyLine, header, indent int) int {
	// The header itself may continue across lines inside brackets.
	i := header
	depth := bracketDelta(lines[i].text)
	for depth > 0 && i+1 < len(lines) {
		i++
		depth += bracketDelta(lines[i].text)
	}
	end := i
	for j := i + 1; j < len(lines); j++ {
		ln := lines[j]
		if ln.inString {
			end = j
			continue
		}
		if ln.blank {
			continue
		}
		if ln.indent <= indent {
			break
		}
		end = j
	}
	return end
}

// bracketDelta counts opening minus closing brackets outside string literals and comments.
func bracketDelta(line string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '#':
			return depth
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		}
	}
	return depth
}

// classifyPython computes indentation and triple-quoted string state for every line.
func classifyPython(raw []string) []pyLine {
	out := make([]pyLine, len(raw))
	var open string // active triple quote delimiter
	for i, text := range raw {
		trimmed := strings.TrimSpace(text)
		out[i] = pyLine{
			text:     text,
			indent:   indentWidth(text),
			blank:    trimmed == "" || strings.HasPrefix(trimmed, "#"),
			inString: open != "",
		}
		open = scanTripleQuotes(text, open)
	}
	return out
}

// scanTripleQuotes returns the triple-quote delimiter still open at the end of line.
func scanTripleQuotes(line, open string) string {
	for i := 0; i < len(line); {
		if open != "" {
			idx := strings.Index(line[i:], open)
			if idx < 0 {
				return open
			}
			i += idx + 3
			open = ""
			continue
		}
		rest := line[i:]
		switch {
		case strings.HasPrefix(rest, `"""`):
			open = `"""`
			i += 3
		case strings.HasPrefix(rest, `'''`):
			open = `'''`
			i += 3
		case rest[0] == '#':
			return ""
		case rest[0] == '"' || rest[0] == '\'':
			// Skip a single-line string literal.
			q := rest[0]
			j := 1
			for j < len(rest) && rest[j] != q {
				if rest[j] == '\\' {
					j++
				}
				j++
			}
			i += j + 1
		default:
			i++
		}
	}
	return open
}

// indentWidth expands tabs to the next multiple of eight, as the Python tokenizer does.
func indentWidth(line string) int {
	w := 0
	for _, c := range line {
		switch c {
		case ' ':
			w++
		case '\t':
			w = (w/8 + 1) * 8
		default:
			return w
		}
	}
	return w
}
