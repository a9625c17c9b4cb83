package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/models"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemStore(t *testing.T, files map[string]string) *FSStore {
	t.Helper()
	fs := afero.NewMemMapFs()
	store := NewFSStore(fs)
	for key, content := range files {
		require.NoError(t, store.Put(context.Background(), key, strings.NewReader(content), "text/csv"))
	}
	return store
}

func TestFSStore_PutAndOpen(t *testing.T) {
	store := newMemStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "processed/casos.json", strings.NewReader(`[]`), "application/json"))

	rc, err := store.Open(ctx, "processed/casos.json")
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(body))
}

func TestFSStore_PutOverwrites(t *testing.T) {
	store := newMemStore(t, map[string]string{"processed/a.json": "old content"})
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "processed/a.json", strings.NewReader("new"), "application/json"))

	rc, err := store.Open(ctx, "processed/a.json")
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "new", string(body))
}

func TestFSStore_OpenMissing(t *testing.T) {
	store := newMemStore(t, nil)

	_, err := store.Open(context.Background(), "raw/missing.csv")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFSStore_OpenDirectory(t *testing.T) {
	store := newMemStore(t, map[string]string{"raw/a.csv": "id\n"})

	_, err := store.Open(context.Background(), "raw")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFSStore_List(t *testing.T) {
	store := newMemStore(t, map[string]string{
		"raw/2024/a.csv":   "id\n1\n",
		"raw/b.csv":        "id\n",
		"raw/notes.txt":    "x",
		"rawdata/c.csv":    "id\n",
		"processed/a.json": "[]",
	})
	ctx := context.Background()

	t.Run("directory prefix", func(t *testing.T) {
		files, err := store.List(ctx, "raw/")

		require.NoError(t, err)
		assert.Equal(t, []models.FileInfo{
			{Key: "raw/2024/a.csv", Size: 5},
			{Key: "raw/b.csv", Size: 3},
			{Key: "raw/notes.txt", Size: 1},
		}, files)
	})

	t.Run("partial name prefix", func(t *testing.T) {
		files, err := store.List(ctx, "raw")

		require.NoError(t, err)
		keys := make([]string, 0, len(files))
		for _, f := range files {
			keys = append(keys, f.Key)
		}
		assert.ElementsMatch(t, []string{"raw/2024/a.csv", "raw/b.csv", "raw/notes.txt", "rawdata/c.csv"}, keys)
	})

	t.Run("empty prefix lists everything", func(t *testing.T) {
		files, err := store.List(ctx, "")

		require.NoError(t, err)
		assert.Len(t, files, 5)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := store.List(ctx, "archive/")

		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestFSStore_CancelledContext(t *testing.T) {
	store := newMemStore(t, map[string]string{"raw/a.csv": "id\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Open(ctx, "raw/a.csv")
	assert.ErrorIs(t, err, context.Canceled)

	err = store.Put(ctx, "raw/b.csv", strings.NewReader(""), "")
	assert.ErrorIs(t, err, context.Canceled)
}
