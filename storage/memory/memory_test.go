package memory

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jmcleod/folio/storage"
)

func TestMemoryRepository(t *testing.T) {
	repo := NewRepository()
	bucket := "session"

	t.Run("PutAndGet", func(t *testing.T) {
		err := repo.Put(bucket, "adminToken", []byte("tok"))
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		got, err := repo.Get(bucket, "adminToken")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "tok" {
			t.Errorf("Get returned %q", got)
		}

		// Values are cloned on the way out.
		got[0] = 'X'
		got2, _ := repo.Get(bucket, "adminToken")
		if got2[0] == 'X' {
			t.Error("Memory repository should return clones of values")
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		_, err := repo.Get("nonexistent", "adminToken")
		if !errors.Is(err, storage.ErrBucketNotFound) {
			t.Errorf("expected ErrBucketNotFound, got %v", err)
		}

		_, err = repo.Get(bucket, "nonexistent")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Create", func(t *testing.T) {
		if err := repo.Create("admins", "a@b.com", []byte("1")); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		err := repo.Create("admins", "a@b.com", []byte("2"))
		if !errors.Is(err, storage.ErrExists) {
			t.Errorf("expected ErrExists, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		repo.Put("projects", "b", []byte("2"))
		repo.Put("projects", "a", []byte("1"))

		keys, err := repo.List("projects")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
			t.Errorf("unexpected keys %v", keys)
		}

		keys, _ = repo.List("nonexistent")
		if len(keys) != 0 {
			t.Errorf("Expected 0 keys for nonexistent bucket, got %d", len(keys))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.Delete(bucket, "adminToken"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := repo.Delete(bucket, "adminToken"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("Batch", func(t *testing.T) {
		repo := NewRepository()

		err := repo.Batch(bucket, func(tx storage.BatchTx) error {
			if err := tx.Put("adminToken", []byte("t")); err != nil {
				return err
			}
			return tx.Put("adminUser", []byte("{}"))
		})
		if err != nil {
			t.Fatalf("Batch failed: %v", err)
		}
		if _, err := repo.Get(bucket, "adminUser"); err != nil {
			t.Error("adminUser should exist after batch")
		}

		// Failing batch rolls back.
		err = repo.Batch(bucket, func(tx storage.BatchTx) error {
			tx.Put("adminToken", []byte("other"))
			tx.Delete("adminUser")
			return fmt.Errorf("simulated error")
		})
		if err == nil {
			t.Error("Expected error from Batch, got nil")
		}
		got, _ := repo.Get(bucket, "adminToken")
		if string(got) != "t" {
			t.Errorf("expected adminToken=t after rollback, got %q", got)
		}
		if _, err := repo.Get(bucket, "adminUser"); err != nil {
			t.Error("adminUser should survive a rolled back delete")
		}

		// Rollback of a batch on a fresh bucket removes the bucket.
		repo.Batch("fresh", func(tx storage.BatchTx) error {
			tx.Put("k", []byte("v"))
			return fmt.Errorf("simulated error")
		})
		if _, err := repo.Get("fresh", "k"); !errors.Is(err, storage.ErrBucketNotFound) {
			t.Errorf("expected ErrBucketNotFound after rollback, got %v", err)
		}
	})
}
