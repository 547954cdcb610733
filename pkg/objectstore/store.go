// Package objectstore writes lake zone objects to S3-compatible storage.
package objectstore

import (
	"context"
)

// Store is the object store surface the pipelines use. Implementations must
// make EnsureBucket idempotent and PutObject an unconditional overwrite that
// only succeeds when the whole body was stored.
type Store interface {
	EnsureBucket(ctx context.Context, bucket string) error
	PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error
}
