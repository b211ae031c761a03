// Package storage defines the object store capability used by the gallery.
// Swap implementations by changing the concrete type injected at startup —
// the MinIO implementation works with any S3-compatible provider.
package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// StoredObject identifies one uploaded object: the internal key used for
// deletion and the publicly fetchable URL returned to clients.
type StoredObject struct {
	Key string
	URL string
}

// Storage is the capability for uploading and removing objects.
type Storage interface {
	// Store streams content under a freshly generated key and returns the
	// key plus its public locator. suggestedName contributes only its file
	// extension to the key.
	Store(ctx context.Context, reader io.Reader, size int64, contentType, suggestedName string) (*StoredObject, error)
	// Remove deletes the object identified by key. Removing a key that no
	// longer exists is success: the end state already holds.
	Remove(ctx context.Context, key string) error
}

// ObjectKey generates a globally unique object key. Only the extension of the
// suggested name is preserved, so client-supplied filenames can neither
// collide nor inject path segments into keys.
func ObjectKey(suggestedName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(suggestedName)))
	return uuid.NewString() + ext
}
