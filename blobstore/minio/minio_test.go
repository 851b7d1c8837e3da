package minio

import (
	"context"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sqvec/sqvec/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIntegration_MinioStore requires a running MinIO instance and is
// skipped otherwise.
func TestIntegration_MinioStore(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	if _, err = client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	bucket := "test-sqvec"
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "test-prefix/")

	data := []byte("hello object store")
	require.NoError(t, store.Put(ctx, "test.snap", data))

	blob, err := store.Open(ctx, "test.snap")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, len(data))
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, buf)
	require.NoError(t, blob.Close())

	// Streaming create.
	w, err := store.Create(ctx, "streamed.snap")
	require.NoError(t, err)
	_, err = w.Write([]byte("streamed "))
	require.NoError(t, err)
	_, err = w.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err := blobstore.ReadAll(ctx, store, "streamed.snap")
	require.NoError(t, err)
	assert.Equal(t, []byte("streamed payload"), got)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, "test.snap")
	assert.Contains(t, names, "streamed.snap")

	require.NoError(t, store.Delete(ctx, "test.snap"))
	require.NoError(t, store.Delete(ctx, "streamed.snap"))

	_, err = store.Open(ctx, "test.snap")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
