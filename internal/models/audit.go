// internal/models/audit.go
package models

import "github.com/google/uuid"

// ModerationAudit records every moderation decision against a listing.
type ModerationAudit struct {
	BaseModel
	ActorID   uuid.UUID     `json:"actor_id" gorm:"type:uuid;not null;index"`
	ListingID uuid.UUID     `json:"listing_id" gorm:"type:uuid;not null;index"`
	Action    string        `json:"action" gorm:"size:50;not null"`
	Reason    string        `json:"reason" gorm:"type:text"`
	OldStatus ListingStatus `json:"old_status" gorm:"type:varchar(20)"`
	NewStatus ListingStatus `json:"new_status" gorm:"type:varchar(20)"`
}
