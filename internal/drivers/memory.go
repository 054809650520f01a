package drivers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemoryDriver is an in-memory Driver. It backs fast development runs and
// the concurrency tests, where the filesystem would only add noise.
type MemoryDriver struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
}

// NewMemoryDriver creates an empty in-memory driver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{buckets: make(map[string]map[string][]byte)}
}

// Name returns the driver name.
func (d *MemoryDriver) Name() string { return "memory" }

// Put stores an object.
func (d *MemoryDriver) Put(ctx context.Context, bucket, key string, data io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("read payload %s/%s: %w", bucket, key, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	objects, ok := d.buckets[bucket]
	if !ok {
		return fmt.Errorf("put object %s/%s: no such bucket", bucket, key)
	}
	objects[key] = payload
	return nil
}

// Get retrieves an object.
func (d *MemoryDriver) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	payload, ok := d.buckets[bucket][key]
	if !ok {
		return nil, fmt.Errorf("get object %s/%s: not found", bucket, key)
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}

// Delete removes an object; missing objects are not an error.
func (d *MemoryDriver) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buckets[bucket], key)
	return nil
}

// List lists object keys under a prefix.
func (d *MemoryDriver) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	var keys []string
	for key := range d.buckets[bucket] {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// EnsureBucket creates the bucket if missing.
func (d *MemoryDriver) EnsureBucket(ctx context.Context, bucket string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.buckets[bucket]; !ok {
		d.buckets[bucket] = make(map[string][]byte)
	}
	return nil
}

// ObjectCount reports how many objects a bucket holds.
func (d *MemoryDriver) ObjectCount(bucket string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.buckets[bucket])
}
