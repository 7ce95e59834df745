// Package storage abstracts the blob store holding document content.
// The database keeps only the storage path; bytes live behind BlobStore.
package storage

import (
	"context"
	"io"
)

// BlobStore stores and retrieves document blobs by path.
type BlobStore interface {
	// Save writes the blob under the given path and returns its size.
	Save(ctx context.Context, path string, r io.Reader) (int64, error)
	// Open returns a reader over the blob. Callers must close it.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Exists reports whether the blob is present.
	Exists(ctx context.Context, path string) (bool, error)
	// Remove deletes the blob. Removing an absent blob is not an error.
	Remove(ctx context.Context, path string) error
}
