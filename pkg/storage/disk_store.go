package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DiskStore implements BlobStore on the local filesystem, one file per
// content hash named <hash>.pdf.
type DiskStore struct {
	dir string
}

// NewDiskStore returns a store rooted at dir. The directory is created on
// first write.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

func (d *DiskStore) path(hash string) string {
	return filepath.Join(d.dir, hash+".pdf")
}

// Put writes the blob, creating the directory if absent.
func (d *DiskStore) Put(_ context.Context, hash string, r io.Reader, _ int64) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	f, err := os.Create(d.path(hash))
	if err != nil {
		return fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close blob: %w", err)
	}
	return nil
}

// Get reads the blob back.
func (d *DiskStore) Get(_ context.Context, hash string) ([]byte, error) {
	data, err := os.ReadFile(d.path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// Delete removes the blob; a missing blob is not an error.
func (d *DiskStore) Delete(_ context.Context, hash string) error {
	if err := os.Remove(d.path(hash)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}
