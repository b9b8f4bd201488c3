// Package filestore provides an abstraction for file storage operations.
//
// It defines a FileStore interface implemented by the localfs (filesystem)
// and miniowr (MinIO / S3) backends. Upload coordinators depend only on this
// interface.
package filestore

import (
	"context"
	"io"
	"time"
)

// FileStore defines the interface for file storage operations.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Write stores the content of reader at path and returns the stored file info.
	// With WriteOptions.Exclusive set, the write must fail with CodeFileExists
	// when path already exists, and that check must be atomic with the create
	// wherever the backend allows it.
	Write(ctx context.Context, path string, reader io.Reader, opts WriteOptions) (*FileInfo, error)

	// Get retrieves a file and its metadata from the specified path.
	// The caller is responsible for closing File.Content.
	Get(ctx context.Context, path string) (*File, error)

	// Delete removes a file at the specified path.
	// Deleting a path that does not exist is not an error.
	Delete(ctx context.Context, path string) error

	// Exists checks if a file exists at the specified path.
	Exists(ctx context.Context, path string) (bool, error)
}

// WriteOptions tunes a single Write call.
type WriteOptions struct {
	// ContentType is recorded by backends that keep object metadata.
	// When empty, backends that need one sniff it from the content.
	ContentType string

	// Exclusive refuses to replace an existing file.
	Exclusive bool
}

// File represents a stored file with its content and metadata.
type File struct {
	Content io.ReadCloser
	Info    FileInfo
}

// FileInfo contains metadata about a stored file.
type FileInfo struct {
	Path         string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}
