// Package storage defines the Storage interface and common types for all blob
// storage backends in the dotfile service.
//
// New backends are added by implementing the Storage interface and registering
// with the factory via an init() function in the backend's own package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (Storage, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// The main package imports each backend with a blank import to trigger init(),
// so adding a new backend requires no changes to the factory or main package.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Download when no blob exists under the key.
var ErrNotFound = errors.New("blob not found")

// Storage is the interface all blob storage backends implement. Keys are
// slash-separated relative paths; the service derives them from collection ID
// and filename, so the metadata rows stay the single source of truth for what
// a key should contain.
type Storage interface {
	// Upload stores a blob under key, replacing any existing content
	Upload(ctx context.Context, key string, reader io.Reader, size int64) (*UploadResult, error)

	// Download retrieves a blob. Returns ErrNotFound when no blob exists
	// under the key.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks whether a blob exists under the key
	Exists(ctx context.Context, key string) (bool, error)

	// Ping verifies the backend is reachable, for readiness probes
	Ping(ctx context.Context) error
}

// UploadResult describes a stored blob
type UploadResult struct {
	// Key is the storage key the blob was stored under
	Key string

	// Size is the blob size in bytes
	Size int64

	// Checksum is the SHA256 hash of the blob contents
	Checksum string
}
