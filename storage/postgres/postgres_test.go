package postgres

import (
	"context"
	"os"
	"strconv"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/folio/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("FOLIO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FOLIO_TEST_POSTGRES_DSN not set; skipping PostgreSQL tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, EnsureSchema(ctx, pool))
	pool.Exec(ctx, "DELETE FROM kv") //nolint:errcheck
	t.Cleanup(func() {
		pool.Exec(ctx, "DELETE FROM kv") //nolint:errcheck
		pool.Close()
	})
	return NewRepository(pool)
}

func TestPostgresStorage(t *testing.T) {
	s := newTestStore(t)
	bucket := "session"

	t.Run("PutGet", func(t *testing.T) {
		require.NoError(t, s.Put(bucket, "adminToken", []byte("tok")))
		require.NoError(t, s.Put(bucket, "adminToken", []byte("tok2")))
		got, err := s.Get(bucket, "adminToken")
		require.NoError(t, err)
		assert.Equal(t, "tok2", string(got))
	})

	t.Run("Create", func(t *testing.T) {
		require.NoError(t, s.Create("admins", "a@b.com", []byte("1")))
		assert.ErrorIs(t, s.Create("admins", "a@b.com", []byte("2")), storage.ErrExists)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, s.Put("projects", "p2", []byte("2")))
		require.NoError(t, s.Put("projects", "p1", []byte("1")))
		keys, err := s.List("projects")
		require.NoError(t, err)
		assert.Equal(t, []string{"p1", "p2"}, keys)

		keys, err = s.List("nonexistent-bucket")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("Not found", func(t *testing.T) {
		_, err := s.Get("nonexistent-bucket", "k")
		assert.ErrorIs(t, err, storage.ErrBucketNotFound)
		_, err = s.Get(bucket, "nonexistent-key")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, s.Delete(bucket, "nonexistent-key"), storage.ErrNotFound)
	})

	t.Run("Batch rolls back on error", func(t *testing.T) {
		err := s.Batch(bucket, func(tx storage.BatchTx) error {
			require.NoError(t, tx.Delete("adminToken"))
			return tx.Delete("missing")
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)

		v, err := s.Get(bucket, "adminToken")
		require.NoError(t, err)
		assert.Equal(t, "tok2", string(v))
	})
}

func TestPostgresBatchSerializesReadModifyWrite(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put("content", "counter", []byte("0")))

	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Go(func() {
			err := s.Batch("content", func(tx storage.BatchTx) error {
				v, err := tx.Get("counter")
				if err != nil {
					return err
				}
				i, err := strconv.Atoi(string(v))
				if err != nil {
					return err
				}
				return tx.Put("counter", []byte(strconv.Itoa(i+1)))
			})
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	v, err := s.Get("content", "counter")
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(n), string(v))
}
