package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Run("Creates New File", func(t *testing.T) {
		filename := filepath.Join(t.TempDir(), "note.md")

		require.NoError(t, WriteFileAtomic(filename, []byte("hello atomic"), 0644))

		got, err := os.ReadFile(filename)
		require.NoError(t, err)
		assert.Equal(t, "hello atomic", string(got))
	})

	t.Run("Overwrites Existing File", func(t *testing.T) {
		filename := filepath.Join(t.TempDir(), "note.md")
		require.NoError(t, os.WriteFile(filename, []byte("initial"), 0644))

		require.NoError(t, WriteFileAtomic(filename, []byte("overwritten"), 0644))

		got, err := os.ReadFile(filename)
		require.NoError(t, err)
		assert.Equal(t, "overwritten", string(got))
	})

	t.Run("Leaves No Temp Files", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, WriteFileAtomic(filepath.Join(dir, "a.md"), []byte("x"), 0644))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "a.md", entries[0].Name())
	})

	t.Run("Fails if Directory Missing", func(t *testing.T) {
		filename := filepath.Join(t.TempDir(), "missing_folder", "note.md")
		assert.Error(t, WriteFileAtomic(filename, []byte("fail"), 0644))
	})
}

func TestPreservePerm(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}

	dir := t.TempDir()
	filename := filepath.Join(dir, "secret.md")
	require.NoError(t, os.WriteFile(filename, []byte("x"), 0600))

	assert.Equal(t, os.FileMode(0600), PreservePerm(filename, 0644))
	assert.Equal(t, os.FileMode(0644), PreservePerm(filepath.Join(dir, "missing.md"), 0644))
}

func TestIsTempFile(t *testing.T) {
	assert.True(t, IsTempFile("/vault/.fieldwatch-tmp-123"))
	assert.False(t, IsTempFile("/vault/note.md"))
}
