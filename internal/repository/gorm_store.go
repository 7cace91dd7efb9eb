// internal/repository/gorm_store.go
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/kleinmarkt/kleinmarkt-backend/internal/apperrors"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/models"
)

type GormListingStore struct {
	db *gorm.DB
}

func NewGormListingStore(db *gorm.DB) *GormListingStore {
	return &GormListingStore{db: db}
}

func (s *GormListingStore) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := s.db.WithContext(ctx).First(&listing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, &apperrors.TransientStoreError{Op: "get listing", Err: err}
	}
	return &listing, nil
}

func (s *GormListingStore) CreateListing(ctx context.Context, listing *models.Listing) error {
	if err := s.db.WithContext(ctx).Create(listing).Error; err != nil {
		return &apperrors.TransientStoreError{Op: "create listing", Err: err}
	}
	return nil
}

func (s *GormListingStore) DeleteListing(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Delete(&models.Listing{}, id)
	if result.Error != nil {
		return &apperrors.TransientStoreError{Op: "delete listing", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *GormListingStore) UpdateStatus(ctx context.Context, id uuid.UUID, from []models.ListingStatus, to models.ListingStatus) error {
	result := s.db.WithContext(ctx).Model(&models.Listing{}).
		Where("id = ? AND status IN ?", id, from).
		UpdateColumn("status", to)
	if result.Error != nil {
		return &apperrors.TransientStoreError{Op: "update status", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return s.statusMismatch(ctx, id, from)
	}
	return nil
}

// statusMismatch distinguishes a missing row from a stale precondition after a
// zero-row conditional update.
func (s *GormListingStore) statusMismatch(ctx context.Context, id uuid.UUID, expected []models.ListingStatus) error {
	listing, err := s.GetListing(ctx, id)
	if err != nil {
		return err
	}
	return &apperrors.ConflictError{
		Resource: "listing " + id.String(),
		Expected: joinStatuses(expected),
		Actual:   string(listing.Status),
	}
}

func (s *GormListingStore) WriteOverlay(ctx context.Context, id uuid.UUID, fields models.JSONB) error {
	now := time.Now()
	// UpdateColumns: an overlay write must not bump updated_at or fire hooks.
	result := s.db.WithContext(ctx).Model(&models.Listing{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"has_draft":        true,
			"draft_data":       fields,
			"draft_updated_at": now,
		})
	if result.Error != nil {
		return &apperrors.TransientStoreError{Op: "write overlay", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *GormListingStore) ClearOverlay(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&models.Listing{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"has_draft":        false,
			"draft_data":       nil,
			"draft_updated_at": nil,
		})
	if result.Error != nil {
		return &apperrors.TransientStoreError{Op: "clear overlay", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *GormListingStore) CommitFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	updates, err := scalarColumnUpdates(fields)
	if err != nil {
		return err
	}
	updates["updated_at"] = time.Now()
	updates["has_draft"] = false
	updates["draft_data"] = nil
	updates["draft_updated_at"] = nil
	// Publishing an edit to an already-live listing leaves its status alone;
	// only a first publish out of draft changes visibility.
	updates["status"] = gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END",
		models.StatusDraft, models.StatusPublished)

	result := s.db.WithContext(ctx).Model(&models.Listing{}).
		Where("id = ?", id).
		UpdateColumns(updates)
	if result.Error != nil {
		return &apperrors.TransientStoreError{Op: "commit fields", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// scalarColumnUpdates maps overlay field names onto their committed columns.
// Values arrive from JSON round trips, so slices and numbers need coercion.
func scalarColumnUpdates(fields map[string]interface{}) (map[string]interface{}, error) {
	updates := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		switch key {
		case models.FieldTitle, models.FieldDescription:
			updates[key] = fmt.Sprintf("%v", value)
		case models.FieldPrice:
			price, err := toFloat(value)
			if err != nil {
				return nil, &apperrors.ValidationError{Field: key, Reason: err.Error()}
			}
			updates[key] = price
		case models.FieldIsFree, models.FieldPriceNegotiable, models.FieldPriceOnRequest:
			flag, ok := value.(bool)
			if !ok {
				return nil, &apperrors.ValidationError{Field: key, Reason: "must be a boolean"}
			}
			updates[key] = flag
		case models.FieldShipping:
			updates[key] = fmt.Sprintf("%v", value)
		case models.FieldCategoryID:
			if value == nil {
				updates[key] = nil
				continue
			}
			categoryID, err := uuid.Parse(fmt.Sprintf("%v", value))
			if err != nil {
				return nil, &apperrors.ValidationError{Field: key, Reason: "must be a UUID"}
			}
			updates[key] = categoryID
		case models.FieldTags, models.FieldColors:
			values, err := ToStringSlice(value)
			if err != nil {
				return nil, &apperrors.ValidationError{Field: key, Reason: err.Error()}
			}
			updates[key] = pq.StringArray(values)
		case models.FieldAttributes:
			attrs, err := toJSONB(value)
			if err != nil {
				return nil, &apperrors.ValidationError{Field: key, Reason: err.Error()}
			}
			updates[key] = attrs
		case models.FieldImages:
			return nil, &apperrors.ValidationError{Field: key, Reason: "images are applied through the image plan, not the scalar commit"}
		default:
			return nil, &apperrors.ValidationError{Field: key, Reason: "unknown field"}
		}
	}
	return updates, nil
}

func toFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, errors.New("must be a number")
	}
}

// ToStringSlice coerces JSON array values into []string.
func ToStringSlice(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case pq.StringArray:
		return []string(v), nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, errors.New("must be an array of strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errors.New("must be an array of strings")
	}
}

func toJSONB(value interface{}) (models.JSONB, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case models.JSONB:
		return v, nil
	case map[string]interface{}:
		return models.JSONB(v), nil
	default:
		return nil, errors.New("must be an object")
	}
}

func joinStatuses(statuses []models.ListingStatus) string {
	out := ""
	for i, status := range statuses {
		if i > 0 {
			out += "|"
		}
		out += string(status)
	}
	return out
}
