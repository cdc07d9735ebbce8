package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStoreLifecycle(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Open(ctx, "missing.knnb")
	assert.ErrorIs(t, err, ErrNotFound)

	data := []byte("bank-000001 contents")
	require.NoError(t, store.Put(ctx, "bank-000001.knnb", data))
	require.NoError(t, store.Put(ctx, "bank-000002.knnb", []byte("second")))
	require.NoError(t, store.Put(ctx, "MANIFEST.json", []byte(`{}`)))

	blob, err := store.Open(ctx, "bank-000001.knnb")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 11)
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, "bank-000001", string(buf))
	require.NoError(t, blob.Close())

	all, err := ReadAll(ctx, store, "bank-000001.knnb")
	require.NoError(t, err)
	assert.Equal(t, data, all)

	names, err := store.List(ctx, "bank-")
	require.NoError(t, err)
	assert.Equal(t, []string{"bank-000001.knnb", "bank-000002.knnb"}, names)

	// Overwrite replaces contents.
	require.NoError(t, store.Put(ctx, "bank-000002.knnb", []byte("replaced")))
	all, err = ReadAll(ctx, store, "bank-000002.knnb")
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(all))

	require.NoError(t, store.Delete(ctx, "bank-000001.knnb"))
	require.NoError(t, store.Delete(ctx, "bank-000001.knnb"), "deleting twice is fine")

	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"MANIFEST.json", "bank-000002.knnb"}, names)
}

func TestMemoryStore(t *testing.T) {
	testStoreLifecycle(t, NewMemoryStore())

	t.Run("PutCopiesInput", func(t *testing.T) {
		ctx := context.Background()
		s := NewMemoryStore()
		data := []byte("abc")
		require.NoError(t, s.Put(ctx, "x", data))
		data[0] = 'z'

		got, err := ReadAll(ctx, s, "x")
		require.NoError(t, err)
		assert.Equal(t, "abc", string(got))
	})
}

func TestLocalStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")
	store := NewLocalStore(dir)

	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names, "missing directory lists as empty")

	testStoreLifecycle(t, store)

	t.Run("NoTemporaryFilesLeft", func(t *testing.T) {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotContains(t, e.Name(), ".tmp-")
		}
	})

	t.Run("RejectsPathNames", func(t *testing.T) {
		ctx := context.Background()
		assert.Error(t, store.Put(ctx, "../escape", []byte("x")))
		assert.Error(t, store.Put(ctx, "", []byte("x")))
		_, err := store.Open(ctx, "a/b")
		assert.Error(t, err)
	})

	t.Run("EmptyBlob", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, store.Put(ctx, "empty", nil))
		data, err := ReadAll(ctx, store, "empty")
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("CancelledPut", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, store.Put(ctx, "late", []byte("x")), context.Canceled)
	})
}
