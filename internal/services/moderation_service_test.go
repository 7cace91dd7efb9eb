// internal/services/moderation_service_test.go
package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleinmarkt/kleinmarkt-backend/internal/apperrors"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/models"
)

func allowAll(ctx context.Context, actorID uuid.UUID, capability string) (bool, error) {
	return true, nil
}

func denyAll(ctx context.Context, actorID uuid.UUID, capability string) (bool, error) {
	return false, nil
}

func newTestModeration(store *fakeStore, policy CapabilityCheckerFunc) *ModerationService {
	return NewModerationService(nil, store, policy)
}

func TestApproveForcesPublishedFromRejected(t *testing.T) {
	store := newFakeStore()
	listing := draftListing(uuid.New())
	listing.Status = models.StatusRejected
	store.add(listing)
	svc := newTestModeration(store, allowAll)

	approved, err := svc.Approve(context.Background(), uuid.New(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, approved.Status)
}

func TestApproveAlreadyPublishedRejected(t *testing.T) {
	store := newFakeStore()
	listing := draftListing(uuid.New())
	listing.Status = models.StatusPublished
	store.add(listing)
	svc := newTestModeration(store, allowAll)

	_, err := svc.Approve(context.Background(), uuid.New(), listing.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestApproveRequiresCapability(t *testing.T) {
	store := newFakeStore()
	listing := draftListing(uuid.New())
	listing.Status = models.StatusRejected
	store.add(listing)
	svc := newTestModeration(store, denyAll)

	_, err := svc.Approve(context.Background(), uuid.New(), listing.ID)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestRejectForcesListingOutOfVisibility(t *testing.T) {
	store := newFakeStore()
	listing := draftListing(uuid.New())
	listing.Status = models.StatusPublished
	store.add(listing)
	svc := newTestModeration(store, allowAll)

	rejected, err := svc.Reject(context.Background(), uuid.New(), listing.ID, "prohibited item")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)
}

func TestRejectRequiresReason(t *testing.T) {
	store := newFakeStore()
	listing := draftListing(uuid.New())
	listing.Status = models.StatusPublished
	store.add(listing)
	svc := newTestModeration(store, allowAll)

	_, err := svc.Reject(context.Background(), uuid.New(), listing.ID, "   ")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	after, getErr := store.GetListing(context.Background(), listing.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.StatusPublished, after.Status)
}

func TestRejectNonPublishedIsConflict(t *testing.T) {
	store := newFakeStore()
	listing := draftListing(uuid.New())
	listing.Status = models.StatusPaused
	store.add(listing)
	svc := newTestModeration(store, allowAll)

	_, err := svc.Reject(context.Background(), uuid.New(), listing.ID, "prohibited item")
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestModerationNeverTouchesOverlay(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	listing := draftListing(owner)
	listing.Status = models.StatusPublished
	listing.HasDraft = true
	listing.DraftData = models.JSONB{models.FieldTitle: "Pending edit"}
	store.add(listing)
	svc := newTestModeration(store, allowAll)

	rejected, err := svc.Reject(context.Background(), uuid.New(), listing.ID, "prohibited item")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)

	// The owner's pending draft survives the reject and stays resumable.
	assert.True(t, rejected.HasDraft)
	assert.Equal(t, "Pending edit", rejected.DraftData[models.FieldTitle])
	assert.Equal(t, 0, store.clearOverlayCalls)
}

func TestRejectedListingLeavesOnlyThroughApprove(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	listing := draftListing(owner)
	listing.Status = models.StatusRejected
	store.add(listing)

	// No owner action applies to a rejected listing.
	lifecycle := NewLifecycleService(store)
	for _, action := range []models.OwnerAction{
		models.ActionPublish, models.ActionPause, models.ActionReactivate,
		models.ActionMarkSold, models.ActionArchive, models.ActionRestore,
	} {
		_, err := lifecycle.Apply(context.Background(), listing.ID, owner, action)
		require.Error(t, err, string(action))
		assert.True(t, apperrors.IsConflict(err), string(action))
	}

	moderation := newTestModeration(store, allowAll)
	approved, err := moderation.Approve(context.Background(), uuid.New(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, approved.Status)
}
