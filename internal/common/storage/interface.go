package storage

import (
	"context"
	"io"
)

// ObjectStorage is the object store used to archive run artifacts.
type ObjectStorage interface {
	// PutObject uploads size bytes from r. A negative size streams until EOF.
	PutObject(ctx context.Context, bucket, objectKey string, r io.Reader, size int64, contentType string) error

	// GetObject opens a reader for an object. Caller must close it.
	GetObject(ctx context.Context, bucket, objectKey string) (io.ReadCloser, error)

	StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error)
}

// ObjectStat contains object metadata.
type ObjectStat struct {
	SizeBytes   int64
	ETag        string
	ContentType string
}
