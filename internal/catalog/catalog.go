// Package catalog stores the shows seats can be reserved for.  Shows
// carry their full seating layout and price and are immutable once
// created, so the reservation engine treats the catalog as a read-only
// collaborator.
package catalog

import (
	"context"
	"errors"

	"github.com/movietix/seat-reservation/internal/model"
)

// ErrShowNotFound indicates that a show was not located in the store.
var ErrShowNotFound = errors.New("show not found")

// Catalog is the read surface the reservation engine validates hold
// requests against.
type Catalog interface {
	// Get returns the show with the given ID or ErrShowNotFound.
	Get(ctx context.Context, id uint64) (*model.Show, error)

	// List returns all shows ordered by start time ascending.
	List(ctx context.Context) ([]model.Show, error)
}

// Store extends Catalog with show creation for the admin surface.  The
// engine itself only ever sees the Catalog side.
type Store interface {
	Catalog
	Create(ctx context.Context, s *model.Show) error
}
