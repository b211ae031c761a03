// Package gallery implements the per-user image gallery: metadata records in
// Postgres, image bytes in object storage, and the orchestration that keeps
// the two consistent under concurrent, partially failing operations.
package gallery

import (
	"context"
	"errors"
	"time"
)

// Image is the persisted metadata for one stored image.
// ImageKey is the internal object-store handle; clients only ever see the
// public ImageURL.
type Image struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ImageURL  string    `json:"imageUrl"`
	ImageKey  string    `json:"-"`
	Title     string    `json:"title"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
}

// ErrNotFound is returned when an image does not exist for the given owner.
// An id that exists under a different owner is reported identically, so
// callers cannot probe for other users' records.
var ErrNotFound = errors.New("image not found")

// Repository persists image records. Every operation is scoped to an owner;
// mutations are atomic at single-record granularity.
type Repository interface {
	// NextOrder returns one greater than the owner's current maximum order,
	// or 0 when the owner has no images.
	NextOrder(ctx context.Context, userID string) (int, error)
	Insert(ctx context.Context, img *Image) (*Image, error)
	// FindByOwner returns the owner's images ascending by order, ties broken
	// by creation time.
	FindByOwner(ctx context.Context, userID string) ([]*Image, error)
	FindOne(ctx context.Context, id, userID string) (*Image, error)
	UpdateTitle(ctx context.Context, id, userID, title string) (*Image, error)
	UpdateOrder(ctx context.Context, id, userID string, order int) error
	// Delete removes the record and returns it, so the caller can recover
	// the object-store key.
	Delete(ctx context.Context, id, userID string) (*Image, error)
}
