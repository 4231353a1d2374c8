// Package testutil provides testing utilities for Shimmer tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

// WriteTree creates the given files below root on the real filesystem.
// The files map contains slash-separated relative paths to file contents.
// Missing parent directories are created. Returns root.
func WriteTree(t *testing.T, root string, files map[string]string) string {
	t.Helper()

	for path, content := range files {
		fullPath := filepath.Join(root, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write file %s: %v", path, err)
		}
	}
	return root
}

// MakeReadOnly strips write permission from each path: files become 0444 and
// directories 0555. Permissions are restored when the test completes so
// t.TempDir cleanup can still remove whatever is left.
func MakeReadOnly(t *testing.T, paths ...string) {
	t.Helper()

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("failed to stat %s: %v", path, err)
		}

		mode, restore := os.FileMode(0444), os.FileMode(0644)
		if info.IsDir() {
			mode, restore = 0555, 0755
		}
		if err := os.Chmod(path, mode); err != nil {
			t.Fatalf("failed to make %s read-only: %v", path, err)
		}
		t.Cleanup(func() { _ = os.Chmod(path, restore) })
	}
}

// SkipIfNoPermissionEnforcement skips the test when Unix permission bits
// will not stop the current process, i.e. on Windows or when running as root.
func SkipIfNoPermissionEnforcement(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits are not enforced on windows, skipping test")
	}
	if os.Geteuid() == 0 {
		t.Skip("running as root bypasses permission checks, skipping test")
	}
}

// SkipIfNoShell skips the test if sh is not installed.
func SkipIfNoShell(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH, skipping test")
	}
}
