// internal/services/store_fake_test.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kleinmarkt/kleinmarkt-backend/internal/apperrors"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/models"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/repository"
)

// fakeStore is an in-memory ListingStore with the same precondition and
// overlay semantics as the postgres-backed store, plus hooks for failure
// injection and for stalling overlay writes mid-flight.
type fakeStore struct {
	mu       sync.Mutex
	listings map[uuid.UUID]*models.Listing

	writeOverlayCalls int
	clearOverlayCalls int
	commitCalls       int

	overlayErr error
	commitErr  error

	// When set, WriteOverlay signals overlayStarted and then blocks until
	// overlayRelease is closed.
	overlayStarted chan struct{}
	overlayRelease chan struct{}
}

var _ repository.ListingStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{listings: make(map[uuid.UUID]*models.Listing)}
}

func (f *fakeStore) add(listing *models.Listing) *models.Listing {
	f.mu.Lock()
	defer f.mu.Unlock()
	if listing.ID == uuid.Nil {
		listing.ID = uuid.New()
	}
	f.listings[listing.ID] = listing
	return listing
}

func (f *fakeStore) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	listing, ok := f.listings[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return copyListing(listing), nil
}

func (f *fakeStore) CreateListing(ctx context.Context, listing *models.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if listing.ID == uuid.Nil {
		listing.ID = uuid.New()
	}
	listing.CreatedAt = time.Now()
	listing.UpdatedAt = listing.CreatedAt
	f.listings[listing.ID] = copyListing(listing)
	return nil
}

func (f *fakeStore) DeleteListing(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.listings[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(f.listings, id)
	return nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id uuid.UUID, from []models.ListingStatus, to models.ListingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	listing, ok := f.listings[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	for _, status := range from {
		if listing.Status == status {
			listing.Status = to
			return nil
		}
	}
	return &apperrors.ConflictError{
		Resource: "listing " + id.String(),
		Expected: string(from[0]),
		Actual:   string(listing.Status),
	}
}

func (f *fakeStore) WriteOverlay(ctx context.Context, id uuid.UUID, fields models.JSONB) error {
	f.mu.Lock()
	started := f.overlayStarted
	release := f.overlayRelease
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeOverlayCalls++
	if f.overlayErr != nil {
		return f.overlayErr
	}
	listing, ok := f.listings[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	snapshot := make(models.JSONB, len(fields))
	for k, v := range fields {
		snapshot[k] = v
	}
	now := time.Now()
	listing.HasDraft = true
	listing.DraftData = snapshot
	listing.DraftUpdatedAt = &now
	return nil
}

func (f *fakeStore) ClearOverlay(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearOverlayCalls++
	listing, ok := f.listings[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	listing.HasDraft = false
	listing.DraftData = nil
	listing.DraftUpdatedAt = nil
	return nil
}

func (f *fakeStore) CommitFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitCalls++
	if f.commitErr != nil {
		return f.commitErr
	}
	listing, ok := f.listings[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	for k, v := range fields {
		if err := applyField(listing, k, v); err != nil {
			return err
		}
	}
	listing.UpdatedAt = time.Now()
	listing.HasDraft = false
	listing.DraftData = nil
	listing.DraftUpdatedAt = nil
	if listing.Status == models.StatusDraft {
		listing.Status = models.StatusPublished
	}
	return nil
}

func applyField(listing *models.Listing, key string, value interface{}) error {
	switch key {
	case models.FieldTitle:
		listing.Title = value.(string)
	case models.FieldDescription:
		listing.Description = value.(string)
	case models.FieldPrice:
		switch n := value.(type) {
		case float64:
			listing.Price = n
		case int:
			listing.Price = float64(n)
		}
	case models.FieldIsFree:
		listing.IsFree = value.(bool)
	case models.FieldPriceNegotiable:
		listing.PriceNegotiable = value.(bool)
	case models.FieldPriceOnRequest:
		listing.PriceOnRequest = value.(bool)
	case models.FieldCategoryID:
		parsed, err := uuid.Parse(value.(string))
		if err != nil {
			return &apperrors.ValidationError{Field: key, Reason: err.Error()}
		}
		listing.CategoryID = &parsed
	case models.FieldShipping:
		listing.Shipping = models.ShippingOption(value.(string))
	case models.FieldTags:
		listing.Tags = toStrings(value)
	case models.FieldColors:
		listing.Colors = toStrings(value)
	case models.FieldAttributes:
		attrs, _ := value.(map[string]interface{})
		listing.Attributes = models.JSONB(attrs)
	case models.FieldImages:
		return &apperrors.ValidationError{Field: key, Reason: "images are not a scalar field"}
	default:
		return &apperrors.ValidationError{Field: key, Reason: "unknown field"}
	}
	return nil
}

func toStrings(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func copyListing(listing *models.Listing) *models.Listing {
	out := *listing
	if listing.DraftData != nil {
		data := make(models.JSONB, len(listing.DraftData))
		for k, v := range listing.DraftData {
			data[k] = v
		}
		out.DraftData = data
	}
	if listing.DraftUpdatedAt != nil {
		ts := *listing.DraftUpdatedAt
		out.DraftUpdatedAt = &ts
	}
	out.Tags = append([]string(nil), listing.Tags...)
	out.Colors = append([]string(nil), listing.Colors...)
	out.Images = append([]string(nil), listing.Images...)
	return &out
}

// fakeImageApplier records the plans it receives and can be told to fail.
type fakeImageApplier struct {
	mu    sync.Mutex
	plans [][]string
	err   error
}

func (f *fakeImageApplier) ApplyImagePlan(ctx context.Context, listingID uuid.UUID, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.plans = append(f.plans, keys)
	return nil
}

func (f *fakeImageApplier) lastPlan() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.plans) == 0 {
		return nil
	}
	return f.plans[len(f.plans)-1]
}

func draftListing(owner uuid.UUID) *models.Listing {
	return &models.Listing{
		BaseModel:   models.BaseModel{ID: uuid.New()},
		OwnerID:     owner,
		Title:       "Vintage bike",
		Description: "Three gears, some rust",
		Price:       80,
		Shipping:    models.ShippingPickupOnly,
		Tags:        []string{"bike", "vintage"},
		Images:      []string{"listings/a.jpg"},
		Status:      models.StatusDraft,
	}
}
