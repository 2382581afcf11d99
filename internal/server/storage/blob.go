package storage

import (
	"context"
	"io"
)

// BlobStorage stores attachment contents
type BlobStorage interface {
	// Put stores the content under a new reference
	Put(ctx context.Context, name string, r io.Reader) (string, error)

	// Get opens the content. Caller closes the reader.
	// Returns ErrBlobNotFound if the reference is unknown
	Get(ctx context.Context, ref string) (io.ReadCloser, error)

	// Delete removes the content
	// Returns ErrBlobNotFound if the reference is unknown
	Delete(ctx context.Context, ref string) error

	// Close releases backend resources
	Close() error
}
