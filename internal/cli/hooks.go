package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Hook types that can be installed.
const (
	HookPreCommit = "pre-commit"
	HookPrePush   = "pre-push"
)

// hookMarker identifies scripts written by InstallHook.
const hookMarker = "# codelod hook"

// ErrNotGitRepo is returned when the project has no .git/hooks directory.
var ErrNotGitRepo = errors.New("not a git repository")

// HookScript is the script installed for hookType.
func HookScript(hookType string) string {
	return fmt.Sprintf("#!/bin/sh\n%s (%s)\ncodelod validate -fail-on-stale\n", hookMarker, hookType)
}

func hookPath(root, hookType string) (string, error) {
	if hookType != HookPreCommit && hookType != HookPrePush {
		return "", fmt.Errorf("unknown hook type %q (want %s or %s)", hookType, HookPreCommit, HookPrePush)
	}
	dir := filepath.Join(root, ".git", "hooks")
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", ErrNotGitRepo
	}
	return filepath.Join(dir, hookType), nil
}

// InstallHook writes the validation hook. An existing hook not written by codelod is left alone.
func InstallHook(root, hookType string) (string, error) {
	path, err := hookPath(root, hookType)
	if err != nil {
		return "", err
	}
	if existing, err := os.ReadFile(path); err == nil && !bytes.Contains(existing, []byte(hookMarker)) {
		return "", fmt.Errorf("%s already exists and was not installed by codelod", path)
	}
	if err := os.WriteFile(path, []byte(HookScript(hookType)), 0755); err != nil {
		return "", fmt.Errorf("write hook: %w", err)
	}
	return path, nil
}

// UninstallHook removes a hook written by InstallHook. It reports false when there was none.
func UninstallHook(root, hookType string) (bool, error) {
	path, err := hookPath(root, hookType)
	if err != nil {
		return false, err
	}
	existing, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !bytes.Contains(existing, []byte(hookMarker)) {
		return false, fmt.Errorf("%s was not installed by codelod", path)
	}
	if err := os.Remove(path); err != nil {
		return false, err
	}
	return true, nil
}
