// Package storage provides read access to the object store holding the
// visa export.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrDownloadFailed = errors.New("download failed")
)

// ObjectStorage abstracts the object store the dataset is read from.
// Implementations are the local filesystem and S3.
type ObjectStorage interface {
	// Download copies the object at objectPath to localPath.
	// Returns ErrObjectNotFound when the object does not exist.
	Download(ctx context.Context, objectPath, localPath string) error

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, objectPath string) (bool, error)
}
