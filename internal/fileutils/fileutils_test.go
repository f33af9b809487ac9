package fileutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("data\n"), 0644))
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.csv")
	touch(t, file)

	assert.True(t, FileExists(file))
	assert.False(t, FileExists(filepath.Join(dir, "missing.csv")))
	assert.False(t, FileExists(dir), "directories are not files")
}

func TestDirectoryExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.csv")
	touch(t, file)

	assert.True(t, DirectoryExists(dir))
	assert.False(t, DirectoryExists(file))
	assert.False(t, DirectoryExists(filepath.Join(dir, "missing")))
}

func TestEnsureDirectoryExists(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "out")

	require.NoError(t, EnsureDirectoryExists(target))
	assert.True(t, DirectoryExists(target))

	// Idempotent.
	require.NoError(t, EnsureDirectoryExists(target))
}

func TestResolveSourcePath(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.csv"))
	touch(t, filepath.Join(dir, "a.csv"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "sub", "c.csv"))

	t.Run("single file", func(t *testing.T) {
		got, err := ResolveSourcePath(filepath.Join(dir, "a.csv"))
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(dir, "a.csv")}, got)
	})

	t.Run("folder picks csv files sorted", func(t *testing.T) {
		got, err := ResolveSourcePath(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(dir, "a.csv"),
			filepath.Join(dir, "b.csv"),
		}, got)
	})

	t.Run("glob", func(t *testing.T) {
		got, err := ResolveSourcePath(filepath.Join(dir, "*.csv"))
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("recursive glob", func(t *testing.T) {
		got, err := ResolveSourcePath(filepath.Join(dir, "**", "*.csv"))
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(dir, "a.csv"),
			filepath.Join(dir, "b.csv"),
			filepath.Join(dir, "sub", "c.csv"),
		}, got)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := ResolveSourcePath(filepath.Join(dir, "nope.csv"))
		assert.Error(t, err)
	})

	t.Run("glob with no matches", func(t *testing.T) {
		_, err := ResolveSourcePath(filepath.Join(dir, "*.xml"))
		assert.Error(t, err)
	})

	t.Run("folder with no csv", func(t *testing.T) {
		empty := t.TempDir()
		touch(t, filepath.Join(empty, "only.txt"))
		_, err := ResolveSourcePath(empty)
		assert.Error(t, err)
	})
}
