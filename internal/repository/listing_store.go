// internal/repository/listing_store.go
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/kleinmarkt/kleinmarkt-backend/internal/models"
)

// ListingStore is the row-level persistence contract the listing core runs
// against: whole-row reads, preconditioned status updates, overlay writes and
// the atomic publish commit. The overlay operations never touch committed
// columns, and status is only ever written by UpdateStatus or CommitFields.
type ListingStore interface {
	GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	CreateListing(ctx context.Context, listing *models.Listing) error
	DeleteListing(ctx context.Context, id uuid.UUID) error

	// UpdateStatus writes the status column iff the current status is one of
	// from. A stale precondition surfaces as *apperrors.ConflictError.
	UpdateStatus(ctx context.Context, id uuid.UUID, from []models.ListingStatus, to models.ListingStatus) error

	// WriteOverlay replaces draft_data wholesale with fields and stamps
	// draft_updated_at. Full-snapshot semantics: there is no field-level merge.
	WriteOverlay(ctx context.Context, id uuid.UUID, fields models.JSONB) error

	// ClearOverlay drops the overlay without touching committed fields,
	// status or updated_at. Clearing an absent overlay is a no-op.
	ClearOverlay(ctx context.Context, id uuid.UUID) error

	// CommitFields merges scalar overlay fields into committed columns, stamps
	// updated_at, clears the overlay, and advances status to published iff the
	// current status is draft — all in one atomic row update. The images key
	// must already have been partitioned out by the caller.
	CommitFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
}
