// Package blob contains BlobStorage implementations for element attachments.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/iudanet/supwarden/internal/server/storage"
)

var bucketBlobs = []byte("blobs")

// BoltStore keeps attachment contents in a local BoltDB file.
// Reference is a random uuid, the original name is not used as a key.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the BoltDB file at path
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBlobs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create blobs bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Put stores the content and returns its reference
func (s *BoltStore) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read blob %q: %w", name, err)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	ref := uuid.New().String()
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBlobs).Put([]byte(ref), data)
	})
	if err != nil {
		return "", fmt.Errorf("failed to store blob: %w", err)
	}

	return ref, nil
}

// Get returns the content of ref
func (s *BoltStore) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketBlobs).Get([]byte(ref))
		if v == nil {
			return storage.ErrBlobNotFound
		}
		// значение валидно только внутри транзакции
		data = bytes.Clone(v)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes ref. Missing ref is reported as ErrBlobNotFound.
func (s *BoltStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketBlobs)
		if b.Get([]byte(ref)) == nil {
			return storage.ErrBlobNotFound
		}
		return b.Delete([]byte(ref))
	})
}

// Close closes the database file
func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
