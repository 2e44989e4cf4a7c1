package toolexec

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWithinRelativePath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0o644))

	got, err := resolveWithin(root, "main.go")
	require.NoError(t, err)

	canonRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(canonRoot, "main.go"), got)
}

func TestResolveWithinRejectsTraversal(t *testing.T) {
	root := t.TempDir()

	tests := []string{
		"../outside.txt",
		"../../etc/passwd",
		"nested/../../outside.txt",
		filepath.Join(os.TempDir(), "absolute-outside.txt"),
	}
	for _, path := range tests {
		t.Run(path, func(t *testing.T) {
			_, err := resolveWithin(root, path)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSecurityViolation)
		})
	}
}

func TestResolveWithinAllowsRootItself(t *testing.T) {
	root := t.TempDir()
	got, err := resolveWithin(root, ".")
	require.NoError(t, err)

	canonRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, canonRoot, got)
}

func TestResolveWithinNonexistentTarget(t *testing.T) {
	root := t.TempDir()

	// Write targets do not exist yet; their nonexistent suffix passes
	// through while the existing ancestry is still validated.
	got, err := resolveWithin(root, "new/dir/file.txt")
	require.NoError(t, err)
	assert.Contains(t, got, filepath.Join("new", "dir", "file.txt"))
}

func TestResolveWithinRejectsSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privileges on windows")
	}
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "sneaky")))

	_, err := resolveWithin(root, "sneaky/file.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSecurityViolation)
}

func TestResolveWithinRequiresRoot(t *testing.T) {
	_, err := resolveWithin("", "file.txt")
	assert.Error(t, err)
}

func TestResolveWithinMissingRoot(t *testing.T) {
	_, err := resolveWithin(filepath.Join(t.TempDir(), "does-not-exist"), "file.txt")
	assert.Error(t, err)
}
