package objectstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/lakeflow/pkg/errors"
	"github.com/ajitpratap0/lakeflow/pkg/models"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.EnsureBucket(ctx, "raw-zone"))
	require.NoError(t, store.EnsureBucket(ctx, "raw-zone"))

	body := []byte(`[{"id":1}]`)
	require.NoError(t, store.PutObject(ctx, "raw-zone", "products/20240301_120000.json", body, models.ContentTypeJSON))

	// callers may reuse their buffer
	body[0] = 'x'

	obj, ok := store.Object("raw-zone", "products/20240301_120000.json")
	require.True(t, ok)
	assert.Equal(t, `[{"id":1}]`, string(obj.Body))
	assert.Equal(t, models.ContentTypeJSON, obj.ContentType)
	assert.Equal(t, []string{"products/20240301_120000.json"}, store.Keys("raw-zone"))
}

func TestMemoryStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureBucket(ctx, "b"))

	require.NoError(t, store.PutObject(ctx, "b", "k", []byte("one"), "text/plain"))
	require.NoError(t, store.PutObject(ctx, "b", "k", []byte("two"), "text/plain"))

	obj, _ := store.Object("b", "k")
	assert.Equal(t, "two", string(obj.Body))
}

func TestMemoryStoreFailures(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	err := store.PutObject(ctx, "missing", "k", nil, "")
	assert.True(t, errors.IsType(err, errors.ErrorTypeStorageWrite))

	require.NoError(t, store.EnsureBucket(ctx, "b"))
	store.FailPut = func(bucket, key string) error {
		if key == "bad" {
			return fmt.Errorf("injected")
		}
		return nil
	}

	require.NoError(t, store.PutObject(ctx, "b", "good", []byte("1"), ""))
	err = store.PutObject(ctx, "b", "bad", []byte("1"), "")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStorageWrite))
	_, ok := store.Object("b", "bad")
	assert.False(t, ok)

	store.FailBucket = func(string) error { return fmt.Errorf("down") }
	assert.True(t, errors.IsType(store.EnsureBucket(ctx, "c"), errors.ErrorTypeStorageWrite))
	assert.False(t, store.HasBucket("c"))

	assert.Equal(t, []string{"put:missing/k", "bucket:b", "put:b/good", "put:b/bad", "bucket:c"}, store.Operations())
}
