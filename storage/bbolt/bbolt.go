// Package bbolt provides a BBolt-backed storage repository.
package bbolt

import (
	"fmt"

	"github.com/jmcleod/folio/storage"
	"go.etcd.io/bbolt"
)

// Store implements storage.Repository backed by a BBolt database.
type Store struct {
	db *bbolt.DB
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given BBolt database.
func NewRepository(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// NewRepositoryFromFile opens a BBolt database at the given path and returns a new Repository.
func NewRepositoryFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewRepository(db), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(bucket, key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), value)
	})
}

func (s *Store) Create(bucket, key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		if b.Get([]byte(key)) != nil {
			return fmt.Errorf("%s/%s: %w", bucket, key, storage.ErrExists)
		}
		return b.Put([]byte(key), value)
	})
}

func (s *Store) Get(bucket, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("%s: %w", bucket, storage.ErrBucketNotFound)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s/%s: %w", bucket, key, storage.ErrNotFound)
		}
		// bbolt memory is only valid inside the transaction.
		value = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) Delete(bucket, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("%s: %w", bucket, storage.ErrBucketNotFound)
		}
		if b.Get([]byte(key)) == nil {
			return fmt.Errorf("%s/%s: %w", bucket, key, storage.ErrNotFound)
		}
		return b.Delete([]byte(key))
	})
}

func (s *Store) List(bucket string) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

type boltBatchTx struct {
	bucket *bbolt.Bucket
	name   string
}

func (tx *boltBatchTx) Get(key string) ([]byte, error) {
	data := tx.bucket.Get([]byte(key))
	if data == nil {
		return nil, fmt.Errorf("%s/%s: %w", tx.name, key, storage.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (tx *boltBatchTx) Put(key string, value []byte) error {
	return tx.bucket.Put([]byte(key), value)
}

func (tx *boltBatchTx) Delete(key string) error {
	if tx.bucket.Get([]byte(key)) == nil {
		return fmt.Errorf("%s/%s: %w", tx.name, key, storage.ErrNotFound)
	}
	return tx.bucket.Delete([]byte(key))
}

func (s *Store) Batch(bucket string, fn func(tx storage.BatchTx) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return fn(&boltBatchTx{bucket: b, name: bucket})
	})
}
