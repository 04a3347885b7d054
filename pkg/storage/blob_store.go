package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
)

// ErrBlobNotFound is returned when no blob exists for a content hash.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore persists file contents addressed by their content hash.
type BlobStore interface {
	// Put writes the blob for hash. Last write wins on collision.
	Put(ctx context.Context, hash string, r io.Reader, size int64) error
	// Get reads the blob back, or ErrBlobNotFound when absent.
	Get(ctx context.Context, hash string) ([]byte, error)
	// Delete removes the blob if present; absent blobs are a no-op.
	Delete(ctx context.Context, hash string) error
}

// ContentHash returns the hex MD5 digest of data. The digest is only used
// for deduplication and blob addressing, not tamper resistance.
func ContentHash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
