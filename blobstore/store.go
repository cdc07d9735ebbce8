package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error that satisfies errors.Is(err, ErrNotFound).
var ErrNotFound = os.ErrNotExist

// Store is a flat namespace of immutable blobs.
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Put writes a blob atomically, replacing any previous contents.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the names with the given prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	// ReadAt reads len(p) bytes at offset off. It follows io.ReaderAt semantics.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// Size returns the blob size in bytes.
	Size() int64
	Close() error
}

// Mappable is implemented by blobs whose contents are already in memory.
type Mappable interface {
	// Bytes returns the contents without copying. The slice is valid until
	// the blob is closed.
	Bytes() ([]byte, error)
}

// ReadAll returns the full contents of the named blob.
func ReadAll(ctx context.Context, s Store, name string) ([]byte, error) {
	b, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	if m, ok := b.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		// Copy out of the mapping before Close invalidates it.
		return append([]byte(nil), data...), nil
	}

	size := b.Size()
	if size < 0 {
		return nil, fmt.Errorf("blobstore: %s has invalid size %d", name, size)
	}
	buf := make([]byte, size)
	n, err := b.ReadAt(ctx, buf, 0)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if int64(n) != size {
		return nil, fmt.Errorf("blobstore: short read of %s: %d of %d bytes: %w", name, n, size, io.ErrUnexpectedEOF)
	}
	return buf, nil
}
