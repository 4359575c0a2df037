// Package storage holds the image blob stores. Observation images live under
// a per-user namespaced object key and are addressed everywhere else by their
// public URL.
package storage

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
)

// opTimeout bounds every single call against the backing store.
const opTimeout = 30 * time.Second

// ImageStore uploads and deletes observation images.
type ImageStore interface {
	// Upload stores the blob under key and returns its public URL.
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	// Delete removes the blob a previously returned URL points at.
	// URLs that don't belong to this store are ignored.
	Delete(ctx context.Context, url string) error
}

// ObjectKey builds the namespaced object key for a user's image. The random
// element keeps concurrent uploads from one user on distinct paths.
func ObjectKey(userID uuid.UUID, filename string) string {
	ext := path.Ext(filename)
	return fmt.Sprintf("users/%s/%s%s", userID, uuid.NewString(), ext)
}
