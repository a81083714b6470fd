// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jmcleod/folio/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Suitable for testing, demos, and single-process use cases.
type Repository struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]map[string][]byte)}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func (r *Repository) Put(bucket, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.putLocked(bucket, key, value)
}

func (r *Repository) putLocked(bucket, key string, value []byte) error {
	if _, ok := r.data[bucket]; !ok {
		r.data[bucket] = make(map[string][]byte)
	}
	r.data[bucket][key] = clone(value)
	return nil
}

func (r *Repository) Create(bucket, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[bucket][key]; ok {
		return fmt.Errorf("%s/%s: %w", bucket, key, storage.ErrExists)
	}
	return r.putLocked(bucket, key, value)
}

func (r *Repository) Get(bucket, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getLocked(bucket, key)
}

func (r *Repository) getLocked(bucket, key string) ([]byte, error) {
	b, ok := r.data[bucket]
	if !ok {
		return nil, fmt.Errorf("%s: %w", bucket, storage.ErrBucketNotFound)
	}
	v, ok := b[key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, storage.ErrNotFound)
	}
	return clone(v), nil
}

// List returns the keys of bucket in lexical order, matching bbolt's cursor order.
func (r *Repository) List(bucket string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.data[bucket]))
	for k := range r.data[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *Repository) Delete(bucket, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteLocked(bucket, key)
}

func (r *Repository) deleteLocked(bucket, key string) error {
	b, ok := r.data[bucket]
	if !ok {
		return fmt.Errorf("%s: %w", bucket, storage.ErrBucketNotFound)
	}
	if _, ok := b[key]; !ok {
		return fmt.Errorf("%s/%s: %w", bucket, key, storage.ErrNotFound)
	}
	delete(b, key)
	return nil
}

// Batch executes fn within a batch transaction. On error, all writes are rolled back.
func (r *Repository) Batch(bucket string, fn func(tx storage.BatchTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.snapshotBucket(bucket)

	tx := &memoryBatchTx{repo: r, bucket: bucket}
	if err := fn(tx); err != nil {
		r.restoreBucket(bucket, snapshot)
		return err
	}
	return nil
}

func (r *Repository) snapshotBucket(bucket string) map[string][]byte {
	original, ok := r.data[bucket]
	if !ok {
		return nil
	}
	cp := make(map[string][]byte, len(original))
	for k, v := range original {
		cp[k] = clone(v)
	}
	return cp
}

func (r *Repository) restoreBucket(bucket string, snapshot map[string][]byte) {
	if snapshot == nil {
		delete(r.data, bucket)
	} else {
		r.data[bucket] = snapshot
	}
}

type memoryBatchTx struct {
	repo   *Repository
	bucket string
}

func (tx *memoryBatchTx) Get(key string) ([]byte, error) {
	return tx.repo.getLocked(tx.bucket, key)
}

func (tx *memoryBatchTx) Put(key string, value []byte) error {
	return tx.repo.putLocked(tx.bucket, key, value)
}

func (tx *memoryBatchTx) Delete(key string) error {
	return tx.repo.deleteLocked(tx.bucket, key)
}
