package minio

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/knnmon/blobstore"
)

// TestMinioStore_Integration requires a running MinIO instance at
// MINIO_ENDPOINT (credentials default to minioadmin/minioadmin).
func TestMinioStore_Integration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("Skipping MinIO integration test: MINIO_ENDPOINT not set")
	}
	accessKey := envOr("MINIO_ACCESS_KEY", "minioadmin")
	secretKey := envOr("MINIO_SECRET_KEY", "minioadmin")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := Dial(ctx, endpoint, accessKey, secretKey, false, "test-knnmon", fmt.Sprintf("run-%d/", time.Now().UnixNano()))
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	data := []byte("hello minio snapshot")
	require.NoError(t, store.Put(ctx, "bank-000001.knnb", data))

	blob, err := store.Open(ctx, "bank-000001.knnb")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "minio", string(buf[:n]))

	tail := make([]byte, 16)
	n, err = blob.ReadAt(ctx, tail, 12)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "snapshot", string(tail[:n]))
	require.NoError(t, blob.Close())

	all, err := blobstore.ReadAll(ctx, store, "bank-000001.knnb")
	require.NoError(t, err)
	assert.Equal(t, data, all)

	names, err := store.List(ctx, "bank-")
	require.NoError(t, err)
	assert.Equal(t, []string{"bank-000001.knnb"}, names)

	require.NoError(t, store.Delete(ctx, "bank-000001.knnb"))
	_, err = store.Open(ctx, "bank-000001.knnb")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
