// Package blobstore abstracts where feature bank snapshots and their manifest
// are kept.
//
// A Store holds immutable, named blobs. Writes replace a blob atomically, so a
// reader sees either the previous or the new contents, never a partial write.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests and ephemeral runs
//   - LocalStore: a directory on the local file system, read through mmap
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible servers
package blobstore
