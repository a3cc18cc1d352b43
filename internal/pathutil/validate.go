// Package pathutil resolves and compares file paths given on the command line.
package pathutil

import (
	"fmt"
	"path/filepath"
	"strings"
)

// RedactPath reduces a full path to .../<parent>/<basename> for short messages.
// For example, "/home/user/.spikeloop/archive.db" becomes ".../.spikeloop/archive.db".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	dir := filepath.Dir(cleaned)
	base := filepath.Base(cleaned)
	parent := filepath.Base(dir)
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// Resolve returns the absolute, symlink-free form of path. The file and
// some of its parent directories need not exist yet.
func Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return "", fmt.Errorf("path contains null byte")
	}
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("cannot resolve absolute path: %w", err)
	}
	dir, err := resolveExistingParent(filepath.Dir(absPath))
	if err != nil {
		return "", err
	}
	resolved := filepath.Join(dir, filepath.Base(absPath))
	if target, err := filepath.EvalSymlinks(resolved); err == nil {
		return target, nil
	}
	return resolved, nil
}

// SamePath reports whether a and b resolve to the same file.
func SamePath(a, b string) (bool, error) {
	ra, err := Resolve(a)
	if err != nil {
		return false, err
	}
	rb, err := Resolve(b)
	if err != nil {
		return false, err
	}
	return ra == rb, nil
}

// resolveExistingParent walks up the directory tree to find the deepest existing
// ancestor, resolves symlinks on it, then re-appends the non-existent tail.
func resolveExistingParent(dir string) (string, error) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err == nil {
		return resolved, nil
	}

	parent := filepath.Dir(dir)
	if parent == dir {
		// hit the root and it doesn't exist
		return "", fmt.Errorf("cannot resolve path: %s", RedactPath(dir))
	}

	resolvedParent, err := resolveExistingParent(parent)
	if err != nil {
		return "", err
	}

	return filepath.Join(resolvedParent, filepath.Base(dir)), nil
}
