package lodfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/codelod/internal/models"
	"github.com/hyperjump/codelod/internal/pipeline"
)

var _ pipeline.Writer = (*Writer)(nil)

// Writer mirrors source files under LodDir: <LodDir>/<path relative to Root>.lod.
type Writer struct {
	Root   string
	LodDir string
}

// NewWriter returns a writer for sources under root.
func NewWriter(root, lodDir string) *Writer {
	return &Writer{Root: root, LodDir: lodDir}
}

// PathFor returns the .lod path for a source file. Sources outside Root are rejected.
func (w *Writer) PathFor(source string) (string, error) {
	return PathFor(w.Root, w.LodDir, source)
}

// PathFor returns the .lod path for source relative to root.
func PathFor(root, lodDir, source string) (string, error) {
	absSource, err := filepath.Abs(source)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, absSource)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside project root %s", source, root)
	}
	return filepath.Join(lodDir, rel+Extension), nil
}

// Write replaces the .lod file for out.Path.
func (w *Writer) Write(ctx context.Context, out pipeline.FileOutput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := w.PathFor(out.Path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create lod directory: %w", err)
	}
	return writeFileAtomic(path, []byte(Render(out)), 0644)
}

// Render produces the .lod content for a file.
func Render(out pipeline.FileOutput) string {
	var blocks []string
	if out.Module != nil && out.Module.Description != "" {
		blocks = append(blocks, FormatComment(Comment{Description: out.Module.Description}, ""))
	}
	for _, e := range out.Entries {
		blocks = append(blocks, FormatComment(Comment{
			Hash:        e.Entity.Hash,
			Description: e.Description,
		}, Signature(&e.Entity)))
	}
	if len(blocks) == 0 {
		return ""
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

// Signature returns the declaration line that identifies e in a .lod file.
func Signature(e *models.Entity) string {
	lines := strings.Split(e.Source, "\n")
	for _, line := range lines {
		s := strings.TrimSpace(line)
		if s == "" || strings.HasPrefix(s, "@") || strings.HasPrefix(s, "#") || strings.HasPrefix(s, "//") {
			continue
		}
		switch e.Scope {
		case models.ScopeFunction:
			if strings.HasPrefix(s, "def ") || strings.HasPrefix(s, "async def ") || strings.HasPrefix(s, "func ") {
				return strings.TrimSpace(strings.TrimSuffix(s, "{"))
			}
		case models.ScopeClass:
			if strings.HasPrefix(s, "class ") {
				return s
			}
			if strings.HasPrefix(s, "type ") {
				return strings.TrimSpace(strings.TrimSuffix(s, "{"))
			}
			if e.Language == "go" {
				// Members of a grouped type declaration.
				return "type " + strings.TrimSpace(strings.TrimSuffix(s, "{"))
			}
		}
	}
	for _, line := range lines {
		if s := strings.TrimSpace(line); s != "" {
			return s
		}
	}
	return fmt.Sprintf("# %s %s", e.Scope, e.Name)
}

// Remove deletes the .lod file for source. A missing file is not an error.
func Remove(root, lodDir, source string) error {
	path, err := PathFor(root, lodDir, source)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".lod-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
