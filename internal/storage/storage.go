// Package storage persists uploaded recipe images.
//
// Two backends are available: the local filesystem (served under MEDIA_URL)
// and S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidKey is returned for keys that would escape the storage root.
var ErrInvalidKey = errors.New("invalid storage key")

// imagePrefix is the key prefix for recipe images.
const imagePrefix = "uploads/recipe"

// Storage stores opaque objects by key.
type Storage interface {
	// Save writes size bytes from r under key, replacing any existing object.
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Delete removes the object. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
	// URL returns the public URL of the object.
	URL(key string) string
}

// NewImageKey returns a fresh key for a recipe image with the given extension.
func NewImageKey(ext string) string {
	return path.Join(imagePrefix, uuid.NewString()+ext)
}

// validKey rejects empty, absolute and parent-relative keys.
func validKey(key string) bool {
	if key == "" || path.IsAbs(key) {
		return false
	}
	clean := path.Clean(key)
	return clean == key && clean != ".." && !strings.HasPrefix(clean, "../")
}
