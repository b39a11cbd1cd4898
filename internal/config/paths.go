package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths are the standard locations inside a project.
type Paths struct {
	Root        string
	Dir         string
	LodDir      string
	ConfigFile  string
	HashDB      string
	SearchIndex string
}

// NewPaths derives every path from the project root.
func NewPaths(root string) Paths {
	dir := filepath.Join(root, DirName)
	return Paths{
		Root:        root,
		Dir:         dir,
		LodDir:      filepath.Join(dir, ".lod"),
		ConfigFile:  filepath.Join(dir, "config.yaml"),
		HashDB:      filepath.Join(dir, "hash-index.db"),
		SearchIndex: filepath.Join(dir, "search.bleve"),
	}
}

// FindProjectRoot walks up from start to the first directory containing DirName.
func FindProjectRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for dir := abs; ; dir = filepath.Dir(dir) {
		if info, err := os.Stat(filepath.Join(dir, DirName)); err == nil && info.IsDir() {
			return dir, nil
		}
		if filepath.Dir(dir) == dir {
			return "", fmt.Errorf("no %s directory found from %s (run codelod init)", DirName, start)
		}
	}
}
