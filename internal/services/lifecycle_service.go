// internal/services/lifecycle_service.go
package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kleinmarkt/kleinmarkt-backend/internal/apperrors"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/models"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/repository"
)

// LifecycleService applies owner-initiated status transitions. Every
// transition is a single preconditioned write of the status column; a stale
// read surfaces as a conflict the caller must resolve by re-reading.
type LifecycleService struct {
	store repository.ListingStore
}

func NewLifecycleService(store repository.ListingStore) *LifecycleService {
	return &LifecycleService{store: store}
}

// Apply performs one owner action against the listing's current status.
func (s *LifecycleService) Apply(ctx context.Context, listingID, actorID uuid.UUID, action models.OwnerAction) (*models.Listing, error) {
	if !models.KnownAction(action) {
		return nil, &apperrors.ValidationError{Field: "action", Reason: "unknown action"}
	}

	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID != actorID {
		return nil, apperrors.ErrPermissionDenied
	}

	next, ok := models.NextStatus(listing.Status, action)
	if !ok {
		return nil, &apperrors.ConflictError{
			Resource: "listing " + listingID.String(),
			Actual:   string(listing.Status) + " does not permit " + string(action),
		}
	}

	// The precondition pins the status we decided against; if it moved
	// underneath us the store reports the conflict instead of overwriting.
	if err := s.store.UpdateStatus(ctx, listingID, []models.ListingStatus{listing.Status}, next); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"listing_id": listingID,
		"action":     action,
		"from":       listing.Status,
		"to":         next,
	}).Info("listing transition applied")

	return s.store.GetListing(ctx, listingID)
}

// Duplicate seeds a brand-new draft listing from an archived listing's
// committed fields. The source is left untouched.
func (s *LifecycleService) Duplicate(ctx context.Context, listingID, actorID uuid.UUID) (*models.Listing, error) {
	source, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if source.OwnerID != actorID {
		return nil, apperrors.ErrPermissionDenied
	}
	if source.Status != models.StatusArchived {
		return nil, &apperrors.ConflictError{
			Resource: "listing " + listingID.String(),
			Expected: string(models.StatusArchived),
			Actual:   string(source.Status),
		}
	}

	copy := &models.Listing{
		OwnerID:         source.OwnerID,
		CategoryID:      source.CategoryID,
		Title:           source.Title,
		Description:     source.Description,
		Price:           source.Price,
		IsFree:          source.IsFree,
		PriceNegotiable: source.PriceNegotiable,
		PriceOnRequest:  source.PriceOnRequest,
		Shipping:        source.Shipping,
		Attributes:      source.Attributes,
		Tags:            source.Tags,
		Colors:          source.Colors,
		Images:          source.Images,
		Status:          models.StatusDraft,
	}
	if err := s.store.CreateListing(ctx, copy); err != nil {
		return nil, err
	}
	return copy, nil
}
