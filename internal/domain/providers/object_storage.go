package providers

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned by Download when the path does not exist.
var ErrObjectNotFound = errors.New("storage object not found")

// StorageObject is one entry in a storage listing.
type StorageObject struct {
	Name      string
	CreatedAt string
}

// ListOptions bounds a storage listing.
type ListOptions struct {
	Limit  int
	Offset int
}

// ObjectStorage is the blob store holding patient documents.
type ObjectStorage interface {
	List(ctx context.Context, prefix string, opts ListOptions) ([]StorageObject, error)
	Download(ctx context.Context, path string) ([]byte, error)
}
