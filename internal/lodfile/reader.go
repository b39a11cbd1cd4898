package lodfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/codelod/internal/models"
)

// Entry is one annotated entity read back from a .lod file.
type Entry struct {
	Scope      models.Scope `json:"scope"`
	Name       string       `json:"name"`
	ParentName string       `json:"parent_name,omitempty"`
	Signature  string       `json:"signature,omitempty"`
	Comment    Comment      `json:"comment"`
}

// QualifiedName returns Parent.Name for methods and Name otherwise.
func (e Entry) QualifiedName() string {
	if e.ParentName == "" {
		return e.Name
	}
	return e.ParentName + "." + e.Name
}

// Read returns the entries of the .lod file at path. A missing file has no entries.
func Read(path string) ([]Entry, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseEntries(string(content), moduleName(path)), nil
}

// File is the parsed content of one .lod file. Source is the project-relative,
// slash-separated path of the source file it describes.
type File struct {
	Source  string  `json:"source"`
	Entries []Entry `json:"entries"`
}

// ReadAll reads every .lod file under lodDir, sorted by source path.
// A missing lodDir has no files.
func ReadAll(lodDir string) ([]File, error) {
	var files []File
	err := filepath.WalkDir(lodDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == lodDir && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, Extension) {
			return nil
		}
		entries, err := Read(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rel, err := filepath.Rel(lodDir, strings.TrimSuffix(path, Extension))
		if err != nil {
			return err
		}
		files = append(files, File{Source: filepath.ToSlash(rel), Entries: entries})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Source < files[j].Source })
	return files, nil
}

// moduleName is the source file stem for a .lod path: pkg/calc.py.lod -> calc.
func moduleName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), Extension)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParseEntries splits content into blank-line separated blocks and pairs each
// comment with the signature that follows it.
func ParseEntries(content, module string) []Entry {
	var entries []Entry
	for _, block := range splitBlocks(content) {
		comments := Parse(block)
		if len(comments) == 0 {
			continue
		}
		c := comments[0]
		sig := signatureLine(block)
		if c.Hash == "" {
			entries = append(entries, Entry{Scope: models.ScopeModule, Name: module, Comment: c})
			continue
		}
		scope, name, parent := classify(sig)
		entries = append(entries, Entry{
			Scope:      scope,
			Name:       name,
			ParentName: parent,
			Signature:  sig,
			Comment:    c,
		})
	}
	return entries
}

func splitBlocks(content string) []string {
	var blocks []string
	var cur []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(cur) > 0 {
				blocks = append(blocks, strings.Join(cur, "\n"))
				cur = nil
			}
			continue
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		blocks = append(blocks, strings.Join(cur, "\n"))
	}
	return blocks
}

// signatureLine is the first line of block that is not a comment.
func signatureLine(block string) string {
	for _, line := range strings.Split(block, "\n") {
		s := strings.TrimSpace(line)
		if s != "" && !strings.HasPrefix(s, "#") {
			return s
		}
	}
	return ""
}

// classify recovers scope, name, and parent from a signature line.
func classify(sig string) (models.Scope, string, string) {
	ident := func(s string) string {
		end := strings.IndexAny(s, "([: \t{")
		if end < 0 {
			return strings.TrimSpace(s)
		}
		return s[:end]
	}
	switch {
	case strings.HasPrefix(sig, "class "):
		return models.ScopeClass, ident(strings.TrimPrefix(sig, "class ")), ""
	case strings.HasPrefix(sig, "async def "):
		return models.ScopeFunction, ident(strings.TrimPrefix(sig, "async def ")), ""
	case strings.HasPrefix(sig, "def "):
		return models.ScopeFunction, ident(strings.TrimPrefix(sig, "def ")), ""
	case strings.HasPrefix(sig, "type "):
		return models.ScopeClass, ident(strings.TrimPrefix(sig, "type ")), ""
	case strings.HasPrefix(sig, "func ("):
		rest := strings.TrimPrefix(sig, "func (")
		close := strings.Index(rest, ")")
		if close < 0 {
			break
		}
		recv := strings.Fields(rest[:close])
		parent := ""
		if len(recv) > 0 {
			parent = ident(strings.TrimLeft(recv[len(recv)-1], "*"))
		}
		return models.ScopeFunction, ident(strings.TrimSpace(rest[close+1:])), parent
	case strings.HasPrefix(sig, "func "):
		return models.ScopeFunction, ident(strings.TrimPrefix(sig, "func ")), ""
	}
	return models.ScopeFunction, "<unknown>", ""
}
