package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndOpen(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save("timetable_p1.csv", []byte("Section,Entity\n"))
	require.NoError(t, err)
	require.Equal(t, "timetable_p1.csv", rel)

	file, err := store.Open(rel)
	require.NoError(t, err)
	defer file.Close()
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	require.Equal(t, "Section,Entity\n", string(content))
}

func TestLocalStorageDeleteMissingIsNoop(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Delete("does-not-exist.pdf"))
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	stale, err := store.Save("stale.txt", []byte("old"))
	require.NoError(t, err)
	fresh, err := store.Save("fresh.txt", []byte("new"))
	require.NoError(t, err)

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, stale), past, past))

	deleted, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	require.Equal(t, []string{"stale.txt"}, deleted)

	_, err = store.Open(fresh)
	require.NoError(t, err)
}
