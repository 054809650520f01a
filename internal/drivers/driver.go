// Package drivers contains the storage clients the generator drives
// traffic through. The generator treats them as black boxes: an operation
// either succeeds or fails with a reason, and every call is bounded by the
// caller's context.
package drivers

import (
	"context"
	"io"
)

// Driver is the common interface all storage clients must implement.
type Driver interface {
	Put(ctx context.Context, bucket, key string, data io.Reader, size int64) error
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, bucket, key string) error
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	EnsureBucket(ctx context.Context, bucket string) error
	Name() string
}
