// Package postgres implements storage.Repository backed by PostgreSQL.
//
// All buckets share one kv table keyed by (bucket, key). A bucket exists
// while it holds at least one row. Batch takes a transaction-scoped advisory
// lock on the bucket, so batches on the same bucket run one at a time like
// BBolt write transactions.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmcleod/folio/storage"
)

const uniqueViolation = "23505"

// Store implements storage.Repository backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given pgx connection pool.
func NewRepository(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewRepositoryFromDSN connects, ensures the schema exists, and returns a
// new Repository.
func NewRepositoryFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return NewRepository(pool), nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Get(bucket, key string) ([]byte, error) {
	return get(context.Background(), s.pool, bucket, key)
}

func (s *Store) Put(bucket, key string, value []byte) error {
	return put(context.Background(), s.pool, bucket, key, value)
}

func (s *Store) Create(bucket, key string, value []byte) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO kv (bucket, key, value) VALUES ($1, $2, $3)`,
		bucket, key, value)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s/%s: %w", bucket, key, storage.ErrExists)
	}
	return err
}

func (s *Store) Delete(bucket, key string) error {
	return del(context.Background(), s.pool, bucket, key)
}

func (s *Store) List(bucket string) ([]string, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT key FROM kv WHERE bucket = $1 ORDER BY key`, bucket)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *Store) Batch(bucket string, fn func(tx storage.BatchTx) error) error {
	ctx := context.Background()
	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer pgTx.Rollback(ctx) //nolint:errcheck

	if _, err := pgTx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, bucket); err != nil {
		return fmt.Errorf("locking bucket %s: %w", bucket, err)
	}
	if err := fn(&pgBatchTx{ctx: ctx, tx: pgTx, bucket: bucket}); err != nil {
		return err
	}
	return pgTx.Commit(ctx)
}

type pgBatchTx struct {
	ctx    context.Context
	tx     pgx.Tx
	bucket string
}

var _ storage.BatchTx = (*pgBatchTx)(nil)

func (btx *pgBatchTx) Get(key string) ([]byte, error) {
	return get(btx.ctx, btx.tx, btx.bucket, key)
}

func (btx *pgBatchTx) Put(key string, value []byte) error {
	return put(btx.ctx, btx.tx, btx.bucket, key, value)
}

func (btx *pgBatchTx) Delete(key string) error {
	return del(btx.ctx, btx.tx, btx.bucket, key)
}

// querier abstracts both *pgxpool.Pool and pgx.Tx for shared queries.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func get(ctx context.Context, q querier, bucket, key string) ([]byte, error) {
	var value []byte
	err := q.QueryRow(ctx, `SELECT value FROM kv WHERE bucket = $1 AND key = $2`, bucket, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFoundError(ctx, q, bucket, key)
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func put(ctx context.Context, q querier, bucket, key string, value []byte) error {
	_, err := q.Exec(ctx,
		`INSERT INTO kv (bucket, key, value) VALUES ($1, $2, $3)
		 ON CONFLICT (bucket, key) DO UPDATE SET value = EXCLUDED.value`,
		bucket, key, value)
	return err
}

func del(ctx context.Context, q querier, bucket, key string) error {
	tag, err := q.Exec(ctx, `DELETE FROM kv WHERE bucket = $1 AND key = $2`, bucket, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFoundError(ctx, q, bucket, key)
	}
	return nil
}

// notFoundError tells a missing bucket from a missing key, matching the
// BBolt backend.
func notFoundError(ctx context.Context, q querier, bucket, key string) error {
	var exists bool
	_ = q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM kv WHERE bucket = $1)`, bucket).Scan(&exists)
	if !exists {
		return fmt.Errorf("%s: %w", bucket, storage.ErrBucketNotFound)
	}
	return fmt.Errorf("%s/%s: %w", bucket, key, storage.ErrNotFound)
}
