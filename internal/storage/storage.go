// Package storage defines the media host abstraction behind the upload proxy.
//
// Backends register themselves with the factory from an init() function in
// their own package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (storage.Storage, error) {
//	        return New(&cfg.Storage.MyBackend)
//	    })
//	}
//
// cmd/server blank-imports every backend so the configured one can be
// selected by name at start-up.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrNotFound is returned (wrapped) by Download and GetMetadata when the key
// does not exist on the backend.
var ErrNotFound = errors.New("object not found")

// Storage is implemented by every media backend
type Storage interface {
	// Upload stores the object under key with the given content type
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*UploadResult, error)

	// Download opens the object for reading
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// GetURL returns a download URL. Cloud backends sign it for ttl.
	GetURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Exists reports whether an object is stored under key
	Exists(ctx context.Context, key string) (bool, error)

	// GetMetadata returns size, type and modification time without reading the body
	GetMetadata(ctx context.Context, key string) (*FileMetadata, error)

	// SignsURLs reports whether GetURL hands out URLs clients can fetch
	// directly. Objects on backends that don't are streamed by the API.
	SignsURLs() bool

	// Ping checks that the backend is reachable and the container exists
	Ping(ctx context.Context) error
}

// UploadResult describes a stored object
type UploadResult struct {
	Key         string
	Size        int64
	ContentType string
	// Checksum is the hex SHA-256 of the content, when the backend computes it
	Checksum string
}

// FileMetadata describes an object without its content
type FileMetadata struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// CleanKey normalises an object key and rejects keys that are empty or try
// to climb out of the key space.
func CleanKey(key string) (string, error) {
	key = strings.TrimLeft(strings.ReplaceAll(key, "\\", "/"), "/")
	if key == "" {
		return "", fmt.Errorf("empty object key")
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return "", fmt.Errorf("invalid object key %q", key)
		}
	}
	return key, nil
}

// PublicURL is the stable API URL an uploaded object is served from
func PublicURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/api/files/" + key
}
