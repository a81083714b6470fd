package bbolt

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/jmcleod/folio/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "folio-test.db"), 0600, nil)
	require.NoError(t, err)
	s := NewRepository(db)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBBoltStorage(t *testing.T) {
	s := newTestStore(t)
	bucket := "session"

	t.Run("PutGet", func(t *testing.T) {
		require.NoError(t, s.Put(bucket, "adminToken", []byte("tok")))

		got, err := s.Get(bucket, "adminToken")
		require.NoError(t, err)
		assert.Equal(t, "tok", string(got))
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, s.Put(bucket, "adminToken", []byte("tok2")))
		got, err := s.Get(bucket, "adminToken")
		require.NoError(t, err)
		assert.Equal(t, "tok2", string(got))
	})

	t.Run("Create", func(t *testing.T) {
		require.NoError(t, s.Create("admins", "a@b.com", []byte("1")))
		err := s.Create("admins", "a@b.com", []byte("2"))
		assert.True(t, errors.Is(err, storage.ErrExists), "got %v", err)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, s.Put("projects", "p2", []byte("2")))
		require.NoError(t, s.Put("projects", "p1", []byte("1")))
		keys, err := s.List("projects")
		require.NoError(t, err)
		assert.Equal(t, []string{"p1", "p2"}, keys)
	})

	t.Run("List Nonexistent Bucket", func(t *testing.T) {
		keys, err := s.List("nonexistent-bucket")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("Get Errors", func(t *testing.T) {
		_, err := s.Get("nonexistent-bucket", "k")
		assert.ErrorIs(t, err, storage.ErrBucketNotFound)

		_, err = s.Get(bucket, "nonexistent-key")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.Put(bucket, "adminUser", []byte("{}")))
		require.NoError(t, s.Delete(bucket, "adminUser"))
		assert.ErrorIs(t, s.Delete(bucket, "adminUser"), storage.ErrNotFound)
		assert.ErrorIs(t, s.Delete("nonexistent-bucket", "k"), storage.ErrBucketNotFound)
	})

	t.Run("Batch commits atomically", func(t *testing.T) {
		err := s.Batch(bucket, func(tx storage.BatchTx) error {
			if err := tx.Put("adminToken", []byte("t3")); err != nil {
				return err
			}
			return tx.Put("adminUser", []byte(`{"id":"1"}`))
		})
		require.NoError(t, err)

		v, err := s.Get(bucket, "adminUser")
		require.NoError(t, err)
		assert.Equal(t, `{"id":"1"}`, string(v))
	})

	t.Run("Batch rolls back on error", func(t *testing.T) {
		err := s.Batch(bucket, func(tx storage.BatchTx) error {
			require.NoError(t, tx.Delete("adminToken"))
			return tx.Delete("missing")
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)

		v, err := s.Get(bucket, "adminToken")
		require.NoError(t, err)
		assert.Equal(t, "t3", string(v))
	})
}

func TestNewRepositoryFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.db")

	s, err := NewRepositoryFromFile(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put("session", "adminToken", []byte("persisted")))
	require.NoError(t, s.Close())

	reopened, err := NewRepositoryFromFile(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Get("session", "adminToken")
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(v))
}
