// internal/services/editor_service_test.go
package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleinmarkt/kleinmarkt-backend/internal/apperrors"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/models"
)

func testEditorConfig() EditorConfig {
	return EditorConfig{
		AutosaveDebounce: 15 * time.Millisecond,
		SavedWindow:      40 * time.Millisecond,
		SessionTTL:       0, // no reaper in tests
	}
}

func newTestEditor(store *fakeStore) *EditorService {
	return NewEditorService(store, NewDraftService(store, nil), testEditorConfig())
}

func TestBeginSeedsFromCommittedFields(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	listing := store.add(draftListing(owner))
	editor := newTestEditor(store)

	view, err := editor.Begin(context.Background(), listing.ID, owner)
	require.NoError(t, err)

	assert.Equal(t, "Vintage bike", view.Fields[models.FieldTitle])
	assert.False(t, view.Dirty)
	assert.Equal(t, AutosaveIdle, view.Autosave)
	assert.Equal(t, models.StatusDraft, view.Status)
	assert.Contains(t, view.LegalActions, models.ActionPublish)
}

func TestBeginResumesFromOverlay(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	listing := draftListing(owner)
	listing.HasDraft = true
	listing.DraftData = models.JSONB{models.FieldTitle: "Half-finished edit"}
	store.add(listing)
	editor := newTestEditor(store)

	view, err := editor.Begin(context.Background(), listing.ID, owner)
	require.NoError(t, err)

	// Overlay values win; fields it never carried fall through.
	assert.Equal(t, "Half-finished edit", view.Fields[models.FieldTitle])
	assert.Equal(t, 80.0, view.Fields[models.FieldPrice])
	// Resuming an unsaved draft does not count as new pending changes.
	assert.False(t, view.Dirty)
}

func TestBeginDeniedForNonOwner(t *testing.T) {
	store := newFakeStore()
	listing := store.add(draftListing(uuid.New()))
	editor := newTestEditor(store)

	_, err := editor.Begin(context.Background(), listing.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestUpdateRejectsUnknownField(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	listing := store.add(draftListing(owner))
	editor := newTestEditor(store)

	_, err := editor.Begin(context.Background(), listing.ID, owner)
	require.NoError(t, err)

	_, err = editor.Update(context.Background(), listing.ID, owner, map[string]interface{}{
		"owner_id": uuid.New().String(),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestAutosaveCoalescesBursts(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	listing := store.add(draftListing(owner))
	editor := newTestEditor(store)

	_, err := editor.Begin(context.Background(), listing.ID, owner)
	require.NoError(t, err)

	// A typing burst well inside the debounce window.
	for _, title := range []string{"C", "Ci", "City bike"} {
		_, err = editor.Update(context.Background(), listing.ID, owner, map[string]interface{}{
			models.FieldTitle: title,
		})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.writeOverlayCalls > 0
	}, time.Second, 2*time.Millisecond)

	// Exactly one write, carrying the final keystroke.
	store.mu.Lock()
	calls := store.writeOverlayCalls
	store.mu.Unlock()
	assert.Equal(t, 1, calls)

	after, err := store.GetListing(context.Background(), listing.ID)
	require.NoError(t, err)
	require.True(t, after.HasDraft)
	assert.Equal(t, "City bike", after.DraftData[models.FieldTitle])
}

func TestAutosaveStateSettlesBackToIdle(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	listing := store.add(draftListing(owner))
	editor := newTestEditor(store)

	_, err := editor.Begin(context.Background(), listing.ID, owner)
	require.NoError(t, err)
	_, err = editor.Update(context.Background(), listing.ID, owner, map[string]interface{}{
		models.FieldTitle: "City bike",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		view, err := editor.State(context.Background(), listing.ID, owner)
		return err == nil && view.Autosave == AutosaveSaved
	}, time.Second, 2*time.Millisecond)

	require.Eventually(t, func() bool {
		view, err := editor.State(context.Background(), listing.ID, owner)
		return err == nil && view.Autosave == AutosaveIdle
	}, time.Second, 2*time.Millisecond)

	// A successful autosave does not consume the pending-changes flag.
	view, err := editor.State(context.Background(), listing.ID, owner)
	require.NoError(t, err)
	assert.True(t, view.Dirty)
}

func TestAutosaveFailureSetsErrorState(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	listing := store.add(draftListing(owner))
	store.overlayErr = &apperrors.TransientStoreError{Op: "write overlay", Err: errors.New("timeout")}
	editor := newTestEditor(store)

	_, err := editor.Begin(context.Background(), listing.ID, owner)
	require.NoError(t, err)
	_, err = editor.Update(context.Background(), listing.ID, owner, map[string]interface{}{
		models.FieldTitle: "City bike",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		view, err := editor.State(context.Background(), listing.ID, owner)
		return err == nil && view.Autosave == AutosaveError
	}, time.Second, 2*time.Millisecond)

	// The session keeps the unsaved edits; a publish is still possible.
	view, err := editor.State(context.Background(), listing.ID, owner)
	require.NoError(t, err)
	assert.True(t, view.Dirty)
	assert.Equal(t, "City bike", view.Fields[models.FieldTitle])
}

func TestPublishCancelsPendingAutosave(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	listing := store.add(draftListing(owner))
	editor := newTestEditor(store)

	_, err := editor.Begin(context.Background(), listing.ID, owner)
	require.NoError(t, err)
	_, err = editor.Update(context.Background(), listing.ID, owner, map[string]interface{}{
		models.FieldTitle: "City bike",
	})
	require.NoError(t, err)

	// Publish lands inside the debounce window: the armed timer must never
	// fire and the commit carries the latest fields anyway.
	published, err := editor.Publish(context.Background(), listing.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "City bike", published.Title)
	assert.Equal(t, models.StatusPublished, published.Status)
	assert.False(t, published.HasDraft)

	// Give a stale timer every chance to misfire.
	time.Sleep(5 * testEditorConfig().AutosaveDebounce)
	store.mu.Lock()
	calls := store.writeOverlayCalls
	store.mu.Unlock()
	assert.Equal(t, 0, calls)

	after, err := store.GetListing(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.False(t, after.HasDraft)

	// The session is gone.
	_, err = editor.State(context.Background(), listing.ID, owner)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPublishWaitsForInFlightOverlayWrite(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	listing := store.add(draftListing(owner))
	started := make(chan struct{})
	release := make(chan struct{})
	store.overlayStarted = started
	store.overlayRelease = release
	editor := newTestEditor(store)

	_, err := editor.Begin(context.Background(), listing.ID, owner)
	require.NoError(t, err)
	_, err = editor.Update(context.Background(), listing.ID, owner, map[string]interface{}{
		models.FieldTitle: "City bike",
	})
	require.NoError(t, err)

	// Wait until the autosave write is on the wire, then stall it there.
	<-started

	done := make(chan *models.Listing, 1)
	go func() {
		published, err := editor.Publish(context.Background(), listing.ID, owner)
		assert.NoError(t, err)
		done <- published
	}()

	// Publish must not clear the overlay while the write is still in flight.
	select {
	case <-done:
		t.Fatal("publish completed before the in-flight overlay write drained")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	published := <-done

	assert.Equal(t, models.StatusPublished, published.Status)
	assert.False(t, published.HasDraft)

	// The stalled write landed before the clear, never after it.
	after, err := store.GetListing(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.False(t, after.HasDraft)
}

func TestPublishWithoutChangesRejected(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	listing := store.add(draftListing(owner))
	editor := newTestEditor(store)

	_, err := editor.Begin(context.Background(), listing.ID, owner)
	require.NoError(t, err)

	_, err = editor.Publish(context.Background(), listing.ID, owner)
	assert.ErrorIs(t, err, apperrors.ErrNoPendingChanges)
}

func TestDiscardDropsOverlayAndSession(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	listing := store.add(draftListing(owner))
	editor := newTestEditor(store)

	_, err := editor.Begin(context.Background(), listing.ID, owner)
	require.NoError(t, err)
	_, err = editor.Update(context.Background(), listing.ID, owner, map[string]interface{}{
		models.FieldTitle: "Abandoned edit",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		after, err := store.GetListing(context.Background(), listing.ID)
		return err == nil && after.HasDraft
	}, time.Second, 2*time.Millisecond)

	require.NoError(t, editor.Discard(context.Background(), listing.ID, owner))

	after, err := store.GetListing(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.False(t, after.HasDraft)
	assert.Equal(t, "Vintage bike", after.Title)
	assert.Equal(t, models.StatusDraft, after.Status)

	// A fresh Begin seeds from committed fields again.
	view, err := editor.Begin(context.Background(), listing.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "Vintage bike", view.Fields[models.FieldTitle])
	assert.False(t, view.Dirty)
}

func TestDiscardWithoutSessionClearsAbandonedOverlay(t *testing.T) {
	store := newFakeStore()
	owner := uuid.New()
	listing := draftListing(owner)
	listing.HasDraft = true
	listing.DraftData = models.JSONB{models.FieldTitle: "From an expired session"}
	store.add(listing)
	editor := newTestEditor(store)

	require.NoError(t, editor.Discard(context.Background(), listing.ID, owner))

	after, err := store.GetListing(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.False(t, after.HasDraft)
}
