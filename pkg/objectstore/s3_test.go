package objectstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/lakeflow/pkg/config"
	"github.com/ajitpratap0/lakeflow/pkg/errors"
	"github.com/ajitpratap0/lakeflow/pkg/models"
	"github.com/ajitpratap0/lakeflow/pkg/testutil"
)

// fakeS3 is a minimal path-style S3 endpoint
type fakeS3 struct {
	mu          sync.Mutex
	buckets     map[string]bool
	objects     map[string][]byte
	types       map[string]string
	creates     int
	createReply int
	putReply    int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		buckets: make(map[string]bool),
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")

	switch {
	case r.Method == http.MethodHead && key == "":
		if f.buckets[bucket] {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case r.Method == http.MethodPut && key == "":
		f.creates++
		if f.createReply == http.StatusConflict {
			writeS3Error(w, http.StatusConflict, "BucketAlreadyOwnedByYou")
			return
		}
		f.buckets[bucket] = true
		w.Header().Set("Location", "/"+bucket)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		if f.putReply != 0 {
			writeS3Error(w, f.putReply, "AccessDenied")
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.objects[path] = body
		f.types[path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>`+code+`</Code><Message>`+code+`</Message></Error>`)
}

func newTestS3Store(t *testing.T, fake *fakeS3) *S3Store {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := NewS3Store(context.Background(), config.ObjectStoreConfig{
		Endpoint:  srv.URL,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Region:    "us-east-1",
	}, testutil.TestLogger(t))
	require.NoError(t, err)
	return store
}

func TestS3StoreEnsureBucket(t *testing.T) {
	fake := newFakeS3()
	store := newTestS3Store(t, fake)
	ctx := context.Background()

	require.NoError(t, store.EnsureBucket(ctx, "raw-zone"))
	require.NoError(t, store.EnsureBucket(ctx, "raw-zone"))

	assert.True(t, fake.buckets["raw-zone"])
	assert.Equal(t, 1, fake.creates)
}

func TestS3StoreEnsureBucketAlreadyOwned(t *testing.T) {
	fake := newFakeS3()
	fake.createReply = http.StatusConflict
	store := newTestS3Store(t, fake)

	require.NoError(t, store.EnsureBucket(context.Background(), "curated-zone"))
}

func TestS3StorePutObjectRoundTrip(t *testing.T) {
	fake := newFakeS3()
	fake.buckets["raw-zone"] = true
	store := newTestS3Store(t, fake)

	body, err := models.EncodeCollection(nil)
	require.NoError(t, err)

	require.NoError(t, store.PutObject(context.Background(), "raw-zone", "users/20240301_120000.json", body, models.ContentTypeJSON))

	assert.Equal(t, body, fake.objects["raw-zone/users/20240301_120000.json"])
	assert.Equal(t, models.ContentTypeJSON, fake.types["raw-zone/users/20240301_120000.json"])
}

func TestS3StorePutObjectFailure(t *testing.T) {
	fake := newFakeS3()
	fake.buckets["raw-zone"] = true
	fake.putReply = http.StatusForbidden
	store := newTestS3Store(t, fake)

	err := store.PutObject(context.Background(), "raw-zone", "carts/x.json", []byte("[]"), models.ContentTypeJSON)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStorageWrite))
}

func TestS3StoreEndpointScheme(t *testing.T) {
	store, err := NewS3Store(context.Background(), config.ObjectStoreConfig{
		Endpoint:  "minio:9000",
		AccessKey: "a",
		SecretKey: "b",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000", store.Endpoint())
	assert.Equal(t, "us-east-1", store.region)
}
