package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveSaveAndPath(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir)
	require.NoError(t, err)

	path, err := archive.Save("roster-1.csv", []byte("Username\nalex\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "roster-1.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Username\nalex\n", string(data))
}

func TestArchiveStripsPathSeparators(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir)
	require.NoError(t, err)

	path, err := archive.Save("../escape.csv", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.csv"), path)
}

func TestArchivePruneRemovesOldFiles(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir)
	require.NoError(t, err)

	oldPath, err := archive.Save("roster-old.csv", []byte("old"))
	require.NoError(t, err)
	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, stale, stale))

	freshPath, err := archive.Save("roster-new.csv", []byte("new"))
	require.NoError(t, err)

	removed, err := archive.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(freshPath)
	assert.NoError(t, err)
}

func TestNewArchiveRequiresDirectory(t *testing.T) {
	_, err := NewArchive("")
	require.Error(t, err)
}
