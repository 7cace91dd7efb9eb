// internal/services/draft_service.go
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kleinmarkt/kleinmarkt-backend/internal/apperrors"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/models"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/repository"
)

// ImageApplier is the image storage collaborator: it receives the replacement
// image ordering for a listing after a successful scalar commit. It is fired
// after the commit, never inside it.
type ImageApplier interface {
	ApplyImagePlan(ctx context.Context, listingID uuid.UUID, keys []string) error
}

// DraftService owns the draft overlay of a listing and the two terminal
// operations on it: publish (merge and clear) and discard (clear only).
type DraftService struct {
	store  repository.ListingStore
	images ImageApplier
}

func NewDraftService(store repository.ListingStore, images ImageApplier) *DraftService {
	return &DraftService{
		store:  store,
		images: images,
	}
}

// WriteOverlay persists the full field snapshot as the listing's pending
// draft. Committed fields and status are never touched.
func (s *DraftService) WriteOverlay(ctx context.Context, listingID uuid.UUID, fields map[string]interface{}) error {
	snapshot := make(models.JSONB, len(fields))
	for k, v := range fields {
		snapshot[k] = v
	}
	return s.store.WriteOverlay(ctx, listingID, snapshot)
}

// ReadOverlay returns the pending draft snapshot, if any.
func (s *DraftService) ReadOverlay(ctx context.Context, listingID uuid.UUID) (models.JSONB, bool, error) {
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, false, err
	}
	overlay, ok := listing.Overlay()
	return overlay, ok, nil
}

// Discard drops the overlay and leaves committed fields and status untouched.
// Discarding when no overlay exists is a no-op.
func (s *DraftService) Discard(ctx context.Context, listingID uuid.UUID) error {
	return s.store.ClearOverlay(ctx, listingID)
}

// Publish commits the given field snapshot: scalar fields are merged into the
// committed columns and the overlay is cleared in one atomic write, with
// status advancing to published only for a first publish out of draft. The
// image plan, if the snapshot carries one, is applied after the commit; its
// failure surfaces as *apperrors.PartialCommitError alongside the already
// committed listing, so the caller can retry just the image step.
func (s *DraftService) Publish(ctx context.Context, listingID uuid.UUID, fields map[string]interface{}) (*models.Listing, error) {
	scalar, imagePlan, hasImages, err := partitionFields(fields)
	if err != nil {
		return nil, err
	}

	if err := s.store.CommitFields(ctx, listingID, scalar); err != nil {
		return nil, err
	}

	var planErr error
	if hasImages && s.images != nil {
		if err := s.images.ApplyImagePlan(ctx, listingID, imagePlan); err != nil {
			logrus.WithError(err).WithField("listing_id", listingID).
				Warn("image plan failed after scalar commit")
			planErr = &apperrors.PartialCommitError{ListingID: listingID.String(), Err: err}
		}
	}

	// Re-fetch so the caller sees server-side defaults applied during commit.
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("publish committed but re-fetch failed: %w", err)
	}
	return listing, planErr
}

// partitionFields splits an edit snapshot into the scalar fields the commit
// writes and the image plan routed to the image collaborator. Leaving the
// images key in the scalar set would try to write a structured value into
// scalar columns.
func partitionFields(fields map[string]interface{}) (map[string]interface{}, []string, bool, error) {
	scalar := make(map[string]interface{}, len(fields))
	var imagePlan []string
	hasImages := false
	for k, v := range fields {
		if k == models.FieldImages {
			keys, err := repository.ToStringSlice(v)
			if err != nil {
				return nil, nil, false, &apperrors.ValidationError{Field: k, Reason: err.Error()}
			}
			imagePlan = keys
			hasImages = true
			continue
		}
		scalar[k] = v
	}
	return scalar, imagePlan, hasImages, nil
}
