package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kv interface {
	Get(key string) ([]byte, error)
	Set(key string, data []byte) error
	Delete(key string) error
	Close() error
}

func backends(t *testing.T) map[string]kv {
	t.Helper()
	dir := t.TempDir()

	fs, err := NewFileStore(filepath.Join(dir, "files"))
	require.NoError(t, err)
	db, err := NewSQLiteStore(filepath.Join(dir, "db", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]kv{"file": fs, "sqlite": db}
}

func TestStores_RoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get("history")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set("history", []byte(`[1]`)))
			require.NoError(t, s.Set("history", []byte(`[1,2]`)))

			got, err := s.Get("history")
			require.NoError(t, err)
			assert.Equal(t, `[1,2]`, string(got))

			require.NoError(t, s.Delete("history"))
			_, err = s.Get("history")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.NoError(t, s.Delete("history"))
		})
	}
}

func TestFileStore_RejectsPathKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, s.Set("../escape", []byte("x")))
	_, err = s.Get("a/b")
	assert.Error(t, err)
}

func TestFileStore_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set("history", []byte("{}")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "history.json", entries[0].Name())
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("history", []byte("persisted")))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get("history")
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(got))
}
