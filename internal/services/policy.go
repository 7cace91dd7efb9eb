// internal/services/policy.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kleinmarkt/kleinmarkt-backend/internal/models"
)

// Capabilities consulted before exposing moderation operations.
const (
	CapabilityApproveListing = "approve-listing"
	CapabilityRejectListing  = "reject-listing"
)

// CapabilityChecker answers "does actor X hold capability Y". The moderation
// service only consults the answer; it implements no authorization logic of
// its own.
type CapabilityChecker interface {
	HasCapability(ctx context.Context, actorID uuid.UUID, capability string) (bool, error)
}

// CapabilityCheckerFunc adapts a function to the CapabilityChecker interface.
type CapabilityCheckerFunc func(ctx context.Context, actorID uuid.UUID, capability string) (bool, error)

func (f CapabilityCheckerFunc) HasCapability(ctx context.Context, actorID uuid.UUID, capability string) (bool, error) {
	return f(ctx, actorID, capability)
}

// UserTypePolicy grants both moderation capabilities to admin accounts.
type UserTypePolicy struct {
	db *gorm.DB
}

func NewUserTypePolicy(db *gorm.DB) *UserTypePolicy {
	return &UserTypePolicy{db: db}
}

func (p *UserTypePolicy) HasCapability(ctx context.Context, actorID uuid.UUID, capability string) (bool, error) {
	switch capability {
	case CapabilityApproveListing, CapabilityRejectListing:
	default:
		return false, nil
	}

	var user models.User
	if err := p.db.WithContext(ctx).First(&user, actorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("database error: %w", err)
	}
	return user.UserType == models.UserTypeAdmin && user.Status == models.UserStatusActive, nil
}
