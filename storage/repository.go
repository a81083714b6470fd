// Package storage provides the key/value abstraction shared by the client
// session store and the development backend.
package storage

import "errors"

var (
	// ErrNotFound is returned when a key does not exist in its bucket.
	ErrNotFound = errors.New("record not found")
	// ErrBucketNotFound is returned when the bucket has never been written.
	ErrBucketNotFound = errors.New("bucket not found")
	// ErrExists is returned by Create when the key is already present.
	ErrExists = errors.New("record already exists")
)

// BatchTx provides reads and writes within one atomic transaction.
// The bucket is scoped to the batch, so methods don't require it.
type BatchTx interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
}

// Repository defines the interface for bucketed key/value storage.
// Values are opaque bytes; callers own their encoding.
type Repository interface {
	Get(bucket, key string) ([]byte, error)
	Put(bucket, key string, value []byte) error
	Create(bucket, key string, value []byte) error
	Delete(bucket, key string) error
	List(bucket string) ([]string, error)
	Batch(bucket string, fn func(tx BatchTx) error) error
}
