// internal/services/listing_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/kleinmarkt/kleinmarkt-backend/internal/apperrors"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/models"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/repository"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/utils"
)

// ImageCleaner removes stored image objects after a listing row is gone.
type ImageCleaner interface {
	DeleteObjects(ctx context.Context, keys []string) error
}

type ListingService struct {
	db      *gorm.DB
	store   repository.ListingStore
	cleaner ImageCleaner
}

type CreateListingRequest struct {
	Title           string                 `json:"title" validate:"required,min=3,max=255"`
	Description     string                 `json:"description" validate:"omitempty,max=10000"`
	Price           float64                `json:"price" validate:"min=0"`
	IsFree          bool                   `json:"is_free"`
	PriceNegotiable bool                   `json:"price_negotiable"`
	PriceOnRequest  bool                   `json:"price_on_request"`
	CategoryID      *uuid.UUID             `json:"category_id,omitempty"`
	Shipping        models.ShippingOption  `json:"shipping,omitempty"`
	Attributes      map[string]interface{} `json:"attributes,omitempty"`
	Tags            []string               `json:"tags,omitempty"`
	Colors          []string               `json:"colors,omitempty"`
	Images          []string               `json:"images,omitempty"`
}

type ListingSearchParams struct {
	utils.PaginationParams
	OwnerID    *uuid.UUID `json:"owner_id,omitempty"`
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
	PriceMin   *float64   `json:"price_min,omitempty"`
	PriceMax   *float64   `json:"price_max,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	FreeOnly   bool       `json:"free_only,omitempty"`
}

func NewListingService(db *gorm.DB, store repository.ListingStore, cleaner ImageCleaner) *ListingService {
	return &ListingService{
		db:      db,
		store:   store,
		cleaner: cleaner,
	}
}

// CreateListing creates a new listing in draft for the given owner.
func (s *ListingService) CreateListing(ctx context.Context, ownerID uuid.UUID, req *CreateListingRequest) (*models.Listing, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var owner models.User
	if err := s.db.WithContext(ctx).First(&owner, ownerID).Error; err != nil {
		return nil, fmt.Errorf("owner not found: %w", err)
	}
	if owner.Status != models.UserStatusActive {
		return nil, errors.New("owner account is not active")
	}

	shipping := req.Shipping
	if shipping == "" {
		shipping = models.ShippingPickupOnly
	}

	listing := &models.Listing{
		OwnerID:         ownerID,
		CategoryID:      req.CategoryID,
		Title:           req.Title,
		Description:     req.Description,
		Price:           req.Price,
		IsFree:          req.IsFree,
		PriceNegotiable: req.PriceNegotiable,
		PriceOnRequest:  req.PriceOnRequest,
		Shipping:        shipping,
		Attributes:      models.JSONB(req.Attributes),
		Tags:            req.Tags,
		Colors:          req.Colors,
		Images:          req.Images,
		Status:          models.StatusDraft,
	}

	if err := s.store.CreateListing(ctx, listing); err != nil {
		return nil, err
	}

	s.db.Preload("Owner").Preload("Category").First(listing, listing.ID)
	return listing, nil
}

// GetListing returns a listing, applying visibility rules: non-published
// listings are visible only to their owner and admins. Overlay data is never
// part of the public shape.
func (s *ListingService) GetListing(ctx context.Context, id uuid.UUID, viewerID *uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := s.db.WithContext(ctx).Preload("Owner").Preload("Category").First(&listing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, &apperrors.TransientStoreError{Op: "get listing", Err: err}
	}

	if listing.Status != models.StatusPublished {
		if viewerID == nil {
			return nil, apperrors.ErrNotFound
		}
		if *viewerID != listing.OwnerID && !s.isAdmin(ctx, *viewerID) {
			return nil, apperrors.ErrNotFound
		}
	}

	return &listing, nil
}

// SearchListings queries published listings over committed fields only.
func (s *ListingService) SearchListings(ctx context.Context, params ListingSearchParams) ([]models.Listing, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Listing{}).
		Preload("Owner").Preload("Category").
		Where("status = ?", models.StatusPublished)

	if params.CategoryID != nil {
		query = query.Where("category_id = ?", *params.CategoryID)
	}
	if params.OwnerID != nil {
		query = query.Where("owner_id = ?", *params.OwnerID)
	}
	if params.Search != "" {
		searchTerm := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", searchTerm, searchTerm)
	}
	if params.PriceMin != nil {
		query = query.Where("price >= ?", *params.PriceMin)
	}
	if params.PriceMax != nil {
		query = query.Where("price <= ?", *params.PriceMax)
	}
	if len(params.Tags) > 0 {
		query = query.Where("tags && ?", pq.StringArray(params.Tags))
	}
	if params.FreeOnly {
		query = query.Where("is_free = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "title", "price"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var listings []models.Listing
	if err := query.Find(&listings).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch listings: %w", err)
	}

	return listings, total, nil
}

// GetOwnerListings returns all of an owner's listings regardless of status.
func (s *ListingService) GetOwnerListings(ctx context.Context, ownerID uuid.UUID, params utils.PaginationParams) ([]models.Listing, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Listing{}).
		Preload("Category").
		Where("owner_id = ?", ownerID)

	if params.Search != "" {
		searchTerm := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", searchTerm, searchTerm)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "title", "status", "price"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var listings []models.Listing
	if err := query.Find(&listings).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch listings: %w", err)
	}

	return listings, total, nil
}

// DeleteListing removes a listing row. The image objects are cleaned up only
// after the row mutation succeeded, so a failed delete leaves no half state.
func (s *ListingService) DeleteListing(ctx context.Context, id, actorID uuid.UUID, isAdmin bool) error {
	listing, err := s.store.GetListing(ctx, id)
	if err != nil {
		return err
	}
	if listing.OwnerID != actorID && !isAdmin {
		return apperrors.ErrPermissionDenied
	}

	if err := s.store.DeleteListing(ctx, id); err != nil {
		return err
	}

	if s.cleaner != nil && len(listing.Images) > 0 {
		if err := s.cleaner.DeleteObjects(ctx, listing.Images); err != nil {
			logrus.WithError(err).WithField("listing_id", id).Warn("image cleanup after delete failed")
		}
	}
	return nil
}

func (s *ListingService) isAdmin(ctx context.Context, userID uuid.UUID) bool {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return false
	}
	return user.UserType == models.UserTypeAdmin
}
