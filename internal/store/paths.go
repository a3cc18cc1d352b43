package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the per-user state directory under the home directory.
const DirName = ".spikeloop"

// GlobalPath returns the path to the per-user state directory.
// On Unix: ~/.spikeloop
// On Windows: %USERPROFILE%\.spikeloop
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName), nil
}

// EnsureGlobalDir creates the per-user state directory if needed and
// returns its path.
func EnsureGlobalDir() (string, error) {
	dir, err := GlobalPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return dir, nil
}

// DefaultArchivePath returns ~/.spikeloop/archive.db.
func DefaultArchivePath() (string, error) {
	dir, err := GlobalPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "archive.db"), nil
}
