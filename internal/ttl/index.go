// Package ttl tracks every object the generator creates and sweeps the
// expired ones back out of storage. Size class determines lifetime: large
// objects are short-lived so buckets never fill with dead weight.
package ttl

import (
	"sync"
	"time"
)

// Class is an object's size class.
type Class string

const (
	ClassRegular Class = "regular"
	ClassLarge   Class = "large"
)

// Policy derives TTLs from object size.
type Policy struct {
	RegularTTL    time.Duration
	LargeTTL      time.Duration
	SizeThreshold int64
}

// ClassOf classifies a payload size.
func (p Policy) ClassOf(size int64) Class {
	if size >= p.SizeThreshold {
		return ClassLarge
	}
	return ClassRegular
}

// TTLFor returns the lifetime for a size class.
func (p Policy) TTLFor(c Class) time.Duration {
	if c == ClassLarge {
		return p.LargeTTL
	}
	return p.RegularTTL
}

// TrackedObject is one object the generator uploaded and still owns.
type TrackedObject struct {
	UserID    string
	Bucket    string
	Key       string
	Size      int64
	CreatedAt time.Time
	Class     Class
	Retries   int
}

// Expired reports whether the object has outlived its TTL at now.
func (o TrackedObject) Expired(p Policy, now time.Time) bool {
	return now.Sub(o.CreatedAt) >= p.TTLFor(o.Class)
}

type objectKey struct {
	bucket string
	key    string
}

// Index maps (bucket, key) to tracked objects. Workers insert on
// successful upload; the sweeper removes on confirmed delete. Access is
// mutually exclusive per operation only, so workers never wait on a whole
// sweep pass.
type Index struct {
	mu      sync.RWMutex
	objects map[objectKey]TrackedObject
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{objects: make(map[objectKey]TrackedObject)}
}

// Add registers an object. Called by the owning worker after a confirmed
// upload.
func (i *Index) Add(obj TrackedObject) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.objects[objectKey{obj.Bucket, obj.Key}] = obj
}

// Remove drops an object. Removing an absent entry is a no-op, so a sweep
// racing a concurrent removal cannot fail.
func (i *Index) Remove(bucket, key string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.objects, objectKey{bucket, key})
}

// Get looks up an object.
func (i *Index) Get(bucket, key string) (TrackedObject, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	obj, ok := i.objects[objectKey{bucket, key}]
	return obj, ok
}

// Len returns the number of tracked objects.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.objects)
}

// OwnedBy returns all objects a user currently owns. Workers use it to
// pick download targets from their own namespace.
func (i *Index) OwnedBy(userID string) []TrackedObject {
	i.mu.RLock()
	defer i.mu.RUnlock()
	var out []TrackedObject
	for _, obj := range i.objects {
		if obj.UserID == userID {
			out = append(out, obj)
		}
	}
	return out
}

// Expired returns a snapshot of all objects past their TTL at now.
func (i *Index) Expired(p Policy, now time.Time) []TrackedObject {
	i.mu.RLock()
	defer i.mu.RUnlock()
	var out []TrackedObject
	for _, obj := range i.objects {
		if obj.Expired(p, now) {
			out = append(out, obj)
		}
	}
	return out
}

// IncrementRetry bumps an entry's retry counter and returns the new count.
// Returns false if the entry vanished in the meantime.
func (i *Index) IncrementRetry(bucket, key string) (int, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	k := objectKey{bucket, key}
	obj, ok := i.objects[k]
	if !ok {
		return 0, false
	}
	obj.Retries++
	i.objects[k] = obj
	return obj.Retries, true
}
