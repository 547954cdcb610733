package objectstore

import (
	"context"
	"sort"
	"sync"

	"github.com/ajitpratap0/lakeflow/pkg/errors"
)

// Object is a stored object
type Object struct {
	Body        []byte
	ContentType string
}

// MemoryStore is an in-process Store used by tests and dry runs.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]map[string]Object
	ops     []string

	// FailPut, when set, is consulted before every PutObject; a non-nil
	// return aborts the write.
	FailPut func(bucket, key string) error
	// FailBucket, when set, is consulted before every EnsureBucket.
	FailBucket func(bucket string) error
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]map[string]Object)}
}

// EnsureBucket implements Store
func (m *MemoryStore) EnsureBucket(_ context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ops = append(m.ops, "bucket:"+bucket)
	if m.FailBucket != nil {
		if err := m.FailBucket(bucket); err != nil {
			return errors.Wrap(err, errors.ErrorTypeStorageWrite, "failed to create bucket").
				WithDetail("bucket", bucket)
		}
	}
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = make(map[string]Object)
	}
	return nil
}

// PutObject implements Store
func (m *MemoryStore) PutObject(_ context.Context, bucket, key string, body []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ops = append(m.ops, "put:"+bucket+"/"+key)
	if m.FailPut != nil {
		if err := m.FailPut(bucket, key); err != nil {
			return errors.Wrap(err, errors.ErrorTypeStorageWrite, "failed to upload object").
				WithDetail("bucket", bucket).
				WithDetail("key", key)
		}
	}
	objects, ok := m.buckets[bucket]
	if !ok {
		return errors.Newf(errors.ErrorTypeStorageWrite, "bucket %s does not exist", bucket).
			WithDetail("bucket", bucket)
	}

	stored := make([]byte, len(body))
	copy(stored, body)
	objects[key] = Object{Body: stored, ContentType: contentType}
	return nil
}

// Object returns the stored object, if any
func (m *MemoryStore) Object(bucket, key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.buckets[bucket][key]
	return obj, ok
}

// Keys returns the sorted keys in bucket
func (m *MemoryStore) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.buckets[bucket]))
	for k := range m.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HasBucket reports whether bucket was created
func (m *MemoryStore) HasBucket(bucket string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.buckets[bucket]
	return ok
}

// Operations returns every call made so far as "bucket:<name>" or
// "put:<bucket>/<key>", in order.
func (m *MemoryStore) Operations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.ops...)
}

var _ Store = (*MemoryStore)(nil)
