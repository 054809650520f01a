package drivers

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// LocalDriver implements Driver on the local filesystem. It exists for
// development runs and tests where no object store is reachable.
type LocalDriver struct {
	basePath string
	logger   *zap.Logger
}

// NewLocalDriver creates a local filesystem driver rooted at basePath.
func NewLocalDriver(basePath string, logger *zap.Logger) *LocalDriver {
	return &LocalDriver{basePath: basePath, logger: logger}
}

// Name returns the driver name.
func (d *LocalDriver) Name() string { return "local" }

func (d *LocalDriver) objectPath(bucket, key string) string {
	return filepath.Join(d.basePath, bucket, filepath.FromSlash(key))
}

// Put stores an object.
func (d *LocalDriver) Put(ctx context.Context, bucket, key string, data io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := d.objectPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 - paths are derived from generated keys
	if err != nil {
		return fmt.Errorf("create object %s: %w", key, err)
	}
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write object %s: %w", key, err)
	}
	return f.Close()
}

// Get retrieves an object.
func (d *LocalDriver) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(d.objectPath(bucket, key)) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	return f, nil
}

// Delete removes an object. A missing object is not an error, matching
// S3 delete semantics.
func (d *LocalDriver) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(d.objectPath(bucket, key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// List lists object keys under a prefix.
func (d *LocalDriver) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root := filepath.Join(d.basePath, bucket)

	var keys []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list objects %s/%s: %w", bucket, prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// EnsureBucket creates the bucket directory.
func (d *LocalDriver) EnsureBucket(ctx context.Context, bucket string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(d.basePath, bucket), 0o750); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}
