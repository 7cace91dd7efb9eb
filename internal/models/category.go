// internal/models/category.go
package models

import "github.com/google/uuid"

// Category is reference data supplied to listings as an opaque foreign key.
// The listing core does not validate category membership.
type Category struct {
	BaseModel
	Name     string     `json:"name" gorm:"size:100;not null"`
	Slug     string     `json:"slug" gorm:"uniqueIndex;size:100;not null"`
	ParentID *uuid.UUID `json:"parent_id" gorm:"type:uuid;index"`

	Children []Category `json:"children,omitempty" gorm:"foreignKey:ParentID"`
}
