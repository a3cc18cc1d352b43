package pathutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	resolvedDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		path        string
		want        string
		wantErr     bool
		errContains string
	}{
		{"existing dir", dir, resolvedDir, false, ""},
		{"missing file", filepath.Join(dir, "out.arrow"), filepath.Join(resolvedDir, "out.arrow"), false, ""},
		{"missing parents", filepath.Join(dir, "a", "b", "out.arrow"), filepath.Join(resolvedDir, "a", "b", "out.arrow"), false, ""},
		{"dot-dot is cleaned", filepath.Join(dir, "a", "..", "out.arrow"), filepath.Join(resolvedDir, "out.arrow"), false, ""},
		{"empty", "", "", true, "empty"},
		{"null byte", dir + "/a\x00b", "", true, "null byte"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Resolve(%q) succeeded, want error", tt.path)
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error = %q, want it to contain %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.path, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestSamePath_Symlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on Windows")
	}
	dir := t.TempDir()
	target := filepath.Join(dir, "archive.db")
	if err := os.WriteFile(target, nil, 0600); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link.db")
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	same, err := SamePath(link, target)
	if err != nil {
		t.Fatalf("SamePath: %v", err)
	}
	if !same {
		t.Error("symlink and its target should be the same path")
	}

	same, err = SamePath(filepath.Join(dir, "other.db"), target)
	if err != nil {
		t.Fatalf("SamePath: %v", err)
	}
	if same {
		t.Error("distinct files reported as the same path")
	}

	if _, err := SamePath("", target); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestRedactPath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"/home/user/.spikeloop/archive.db", ".../.spikeloop/archive.db"},
		{"archive.db", "archive.db"},
		{"/archive.db", "archive.db"},
	}
	for _, tt := range tests {
		if got := RedactPath(tt.input); got != tt.want {
			t.Errorf("RedactPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
