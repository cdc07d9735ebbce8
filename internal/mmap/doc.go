// Package mmap maps snapshot files read-only into memory.
//
// On Unix the file is mapped with mmap(2) and access hints are passed through
// madvise(2). Windows uses file mapping views; hints are ignored there.
//
// A Mapping is safe for concurrent reads. Close is idempotent, but the slice
// returned by Bytes must not be used after Close.
package mmap
