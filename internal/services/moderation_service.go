// internal/services/moderation_service.go
package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/kleinmarkt/kleinmarkt-backend/internal/apperrors"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/models"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/repository"
)

// RejectedStatus is where a moderation reject lands a listing. It sits
// outside the owner transition table; only a moderation approve leads out.
const RejectedStatus = models.StatusRejected

// approvableStatuses: every status a moderation approve accepts as current.
var approvableStatuses = []models.ListingStatus{
	models.StatusDraft,
	models.StatusPaused,
	models.StatusSold,
	models.StatusArchived,
	models.StatusExpired,
	models.StatusReserved,
	models.StatusRejected,
}

// ModerationService forces visibility transitions independent of, and
// outranking, the owner's workflow. It never reads or writes the overlay: a
// draft pending when a listing is rejected stays resumable afterwards.
type ModerationService struct {
	db     *gorm.DB
	store  repository.ListingStore
	policy CapabilityChecker
}

func NewModerationService(db *gorm.DB, store repository.ListingStore, policy CapabilityChecker) *ModerationService {
	return &ModerationService{
		db:     db,
		store:  store,
		policy: policy,
	}
}

// Approve forces a non-published listing into visibility.
func (s *ModerationService) Approve(ctx context.Context, actorID, listingID uuid.UUID) (*models.Listing, error) {
	if err := s.requireCapability(ctx, actorID, CapabilityApproveListing); err != nil {
		return nil, err
	}

	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status == models.StatusPublished {
		return nil, &apperrors.ValidationError{Reason: "listing is already published"}
	}

	if err := s.store.UpdateStatus(ctx, listingID, approvableStatuses, models.StatusPublished); err != nil {
		return nil, err
	}

	go s.recordAudit(actorID, listingID, "approve", "", listing.Status, models.StatusPublished)

	return s.store.GetListing(ctx, listingID)
}

// Reject forces a published listing out of public visibility. A non-empty
// reason is required and recorded.
func (s *ModerationService) Reject(ctx context.Context, actorID, listingID uuid.UUID, reason string) (*models.Listing, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, &apperrors.ValidationError{Field: "reason", Reason: "reason is required for reject"}
	}
	if err := s.requireCapability(ctx, actorID, CapabilityRejectListing); err != nil {
		return nil, err
	}

	if err := s.store.UpdateStatus(ctx, listingID,
		[]models.ListingStatus{models.StatusPublished}, RejectedStatus); err != nil {
		return nil, err
	}

	go s.recordAudit(actorID, listingID, "reject", reason, models.StatusPublished, RejectedStatus)

	return s.store.GetListing(ctx, listingID)
}

func (s *ModerationService) requireCapability(ctx context.Context, actorID uuid.UUID, capability string) error {
	allowed, err := s.policy.HasCapability(ctx, actorID, capability)
	if err != nil {
		return err
	}
	if !allowed {
		return apperrors.ErrPermissionDenied
	}
	return nil
}

func (s *ModerationService) recordAudit(actorID, listingID uuid.UUID, action, reason string, from, to models.ListingStatus) {
	if s.db == nil {
		return
	}
	audit := &models.ModerationAudit{
		ActorID:   actorID,
		ListingID: listingID,
		Action:    action,
		Reason:    reason,
		OldStatus: from,
		NewStatus: to,
	}
	if err := s.db.Create(audit).Error; err != nil {
		logrus.WithError(err).Error("failed to record moderation audit")
	}
}
