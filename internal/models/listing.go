// internal/models/listing.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type ListingStatus string

const (
	StatusDraft     ListingStatus = "draft"
	StatusPublished ListingStatus = "published"
	StatusPaused    ListingStatus = "paused"
	StatusSold      ListingStatus = "sold"
	StatusArchived  ListingStatus = "archived"
	StatusExpired   ListingStatus = "expired"
	StatusReserved  ListingStatus = "reserved"

	// StatusRejected is reachable only through a moderation reject. It is not
	// part of the owner transition table; a moderation approve is the only way
	// out of it.
	StatusRejected ListingStatus = "rejected"
)

// Field keys used in edit sessions and draft overlays. The same names are used
// for committed columns, so a publish can merge an overlay field-by-field.
const (
	FieldTitle           = "title"
	FieldDescription     = "description"
	FieldPrice           = "price"
	FieldIsFree          = "is_free"
	FieldPriceNegotiable = "price_negotiable"
	FieldPriceOnRequest  = "price_on_request"
	FieldCategoryID      = "category_id"
	FieldShipping        = "shipping"
	FieldTags            = "tags"
	FieldColors          = "colors"
	FieldAttributes      = "attributes"

	// FieldImages is not a scalar column: its value is a replacement ordering
	// of image keys and is applied through the image storage collaborator,
	// never merged into the row by a publish.
	FieldImages = "images"
)

type Listing struct {
	BaseModel
	OwnerID         uuid.UUID      `json:"owner_id" gorm:"type:uuid;not null;index"`
	CategoryID      *uuid.UUID     `json:"category_id" gorm:"type:uuid;index"`
	Title           string         `json:"title" gorm:"size:255;not null"`
	Description     string         `json:"description" gorm:"type:text"`
	Price           float64        `json:"price" gorm:"type:decimal(10,2);default:0"`
	IsFree          bool           `json:"is_free" gorm:"default:false"`
	PriceNegotiable bool           `json:"price_negotiable" gorm:"default:false"`
	PriceOnRequest  bool           `json:"price_on_request" gorm:"default:false"`
	Shipping        ShippingOption `json:"shipping" gorm:"type:varchar(30);default:'pickup_only'"`
	Attributes      JSONB          `json:"attributes" gorm:"type:jsonb"`
	Tags            pq.StringArray `json:"tags" gorm:"type:text[]"`
	Colors          pq.StringArray `json:"colors" gorm:"type:text[]"`
	Images          pq.StringArray `json:"images" gorm:"type:text[]"`
	Status          ListingStatus  `json:"status" gorm:"type:varchar(20);default:'draft';index"`

	// Draft overlay. HasDraft is true iff DraftData is non-null; the pair is
	// only ever written together. The overlay never leaks into public JSON.
	HasDraft       bool       `json:"has_draft" gorm:"not null;default:false"`
	DraftData      JSONB      `json:"-" gorm:"type:jsonb"`
	DraftUpdatedAt *time.Time `json:"-"`

	// Relationships
	Owner    User      `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Category *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
}

// CommittedFields returns the scalar field map visible to every reader. It is
// the seed for fresh edit sessions and the base an overlay is resolved against.
func (l *Listing) CommittedFields() map[string]interface{} {
	fields := map[string]interface{}{
		FieldTitle:           l.Title,
		FieldDescription:     l.Description,
		FieldPrice:           l.Price,
		FieldIsFree:          l.IsFree,
		FieldPriceNegotiable: l.PriceNegotiable,
		FieldPriceOnRequest:  l.PriceOnRequest,
		FieldShipping:        string(l.Shipping),
		FieldTags:            []string(l.Tags),
		FieldColors:          []string(l.Colors),
		FieldImages:          []string(l.Images),
	}
	if l.CategoryID != nil {
		fields[FieldCategoryID] = l.CategoryID.String()
	}
	if l.Attributes != nil {
		attrs := make(map[string]interface{}, len(l.Attributes))
		for k, v := range l.Attributes {
			attrs[k] = v
		}
		fields[FieldAttributes] = attrs
	}
	return fields
}

// EffectiveFields resolves committed fields against the draft overlay, if one
// exists. Overlay values win; untouched fields fall through to committed ones.
func (l *Listing) EffectiveFields() map[string]interface{} {
	fields := l.CommittedFields()
	if !l.HasDraft || l.DraftData == nil {
		return fields
	}
	for k, v := range l.DraftData {
		fields[k] = v
	}
	return fields
}

// Overlay returns the draft data and whether an overlay is present.
func (l *Listing) Overlay() (JSONB, bool) {
	if !l.HasDraft || l.DraftData == nil {
		return nil, false
	}
	return l.DraftData, true
}
