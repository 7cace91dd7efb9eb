// internal/services/editor_service.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kleinmarkt/kleinmarkt-backend/internal/apperrors"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/models"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/repository"
)

// AutosaveState is the scheduler's externally visible status, rendered by the
// client as the save indicator.
type AutosaveState string

const (
	AutosaveIdle   AutosaveState = "idle"
	AutosaveSaving AutosaveState = "saving"
	AutosaveSaved  AutosaveState = "saved"
	AutosaveError  AutosaveState = "error"
)

// EditorConfig carries the scheduler timings. Tests shorten them.
type EditorConfig struct {
	AutosaveDebounce time.Duration
	SavedWindow      time.Duration
	SessionTTL       time.Duration
}

func DefaultEditorConfig() EditorConfig {
	return EditorConfig{
		AutosaveDebounce: 1500 * time.Millisecond,
		SavedWindow:      1500 * time.Millisecond,
		SessionTTL:       30 * time.Minute,
	}
}

// editableFields is the allowlist of keys an edit session accepts.
var editableFields = map[string]bool{
	models.FieldTitle:           true,
	models.FieldDescription:     true,
	models.FieldPrice:           true,
	models.FieldIsFree:          true,
	models.FieldPriceNegotiable: true,
	models.FieldPriceOnRequest:  true,
	models.FieldCategoryID:      true,
	models.FieldShipping:        true,
	models.FieldTags:            true,
	models.FieldColors:          true,
	models.FieldAttributes:      true,
	models.FieldImages:          true,
}

// editSession is the server-held working copy of a listing under edit. All
// fields are guarded by the owning EditorService's mutex.
type editSession struct {
	listingID uuid.UUID
	ownerID   uuid.UUID
	fields    map[string]interface{}
	dirty     bool
	autosave  AutosaveState

	timer *time.Timer
	// gen is bumped whenever the pending timer is (re)scheduled or canceled;
	// a timer fire whose generation no longer matches is stale and must not
	// write. This is what makes cancel-before-clear reliable.
	gen int
	// inFlight is non-nil while an overlay write is on the wire; terminal
	// operations wait on it so no autosave lands after the overlay is cleared.
	inFlight chan struct{}
	closed   bool

	lastTouched time.Time
}

// EditSessionView is what the presentation layer renders: effective fields,
// the publish gate, the autosave indicator and the legal next actions.
type EditSessionView struct {
	ListingID    uuid.UUID              `json:"listing_id"`
	Status       models.ListingStatus   `json:"status"`
	Fields       map[string]interface{} `json:"fields"`
	Dirty        bool                   `json:"dirty"`
	Autosave     AutosaveState          `json:"autosave"`
	LegalActions []models.OwnerAction   `json:"legal_actions"`
}

// EditorService holds at most one edit session per listing and runs the
// debounced autosave scheduler over them.
type EditorService struct {
	store  repository.ListingStore
	drafts *DraftService
	cfg    EditorConfig

	mu       sync.Mutex
	sessions map[uuid.UUID]*editSession
}

func NewEditorService(store repository.ListingStore, drafts *DraftService, cfg EditorConfig) *EditorService {
	s := &EditorService{
		store:    store,
		drafts:   drafts,
		cfg:      cfg,
		sessions: make(map[uuid.UUID]*editSession),
	}
	if cfg.SessionTTL > 0 {
		go s.reapSessions()
	}
	return s
}

// reapSessions drops sessions idle beyond the TTL. Their last autosaved
// overlay snapshot remains in the store and seeds the next Begin.
func (s *EditorService) reapSessions() {
	for {
		time.Sleep(s.cfg.SessionTTL / 2)
		s.mu.Lock()
		for id, sess := range s.sessions {
			if !sess.closed && time.Since(sess.lastTouched) > s.cfg.SessionTTL {
				sess.gen++
				if sess.timer != nil {
					sess.timer.Stop()
				}
				delete(s.sessions, id)
			}
		}
		s.mu.Unlock()
	}
}

// Begin opens an edit session for a listing, or resumes the existing one. A
// fresh session is seeded from the overlay when one exists, otherwise from
// committed fields. Either way dirty starts false.
func (s *EditorService) Begin(ctx context.Context, listingID, actorID uuid.UUID) (*EditSessionView, error) {
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID != actorID {
		return nil, apperrors.ErrPermissionDenied
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[listingID]
	if !ok {
		seed := listing.CommittedFields()
		if overlay, hasOverlay := listing.Overlay(); hasOverlay {
			// Resume: the overlay is a full snapshot, but fall through to
			// committed values for any field it never carried.
			for k, v := range overlay {
				seed[k] = v
			}
		}
		sess = &editSession{
			listingID: listingID,
			ownerID:   actorID,
			fields:    seed,
			autosave:  AutosaveIdle,
		}
		s.sessions[listingID] = sess
	} else if sess.ownerID != actorID {
		return nil, apperrors.ErrPermissionDenied
	}
	sess.lastTouched = time.Now()

	return s.viewLocked(sess, listing.Status), nil
}

// Update applies field changes to the session and (re)arms the autosave
// debounce: at most one overlay write per quiet period, carrying the fields
// from the last update.
func (s *EditorService) Update(ctx context.Context, listingID, actorID uuid.UUID, changes map[string]interface{}) (*EditSessionView, error) {
	for k := range changes {
		if !editableFields[k] {
			return nil, &apperrors.ValidationError{Field: k, Reason: "unknown field"}
		}
	}

	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessionLocked(listingID, actorID)
	if err != nil {
		return nil, err
	}

	for k, v := range changes {
		sess.fields[k] = v
	}
	sess.dirty = true
	sess.lastTouched = time.Now()
	if sess.autosave == AutosaveSaved {
		sess.autosave = AutosaveIdle
	}
	s.armAutosaveLocked(sess)

	return s.viewLocked(sess, listing.Status), nil
}

// State reports the session for the save indicator and the action menu.
func (s *EditorService) State(ctx context.Context, listingID, actorID uuid.UUID) (*EditSessionView, error) {
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessionLocked(listingID, actorID)
	if err != nil {
		return nil, err
	}
	return s.viewLocked(sess, listing.Status), nil
}

// Publish commits the session's fields. It cancels the pending autosave and
// waits out any in-flight overlay write before the commit is issued, then
// destroys the session. A *apperrors.PartialCommitError is returned together
// with the committed listing.
func (s *EditorService) Publish(ctx context.Context, listingID, actorID uuid.UUID) (*models.Listing, error) {
	snapshot, err := s.beginTerminal(listingID, actorID, true)
	if err != nil {
		return nil, err
	}

	listing, err := s.drafts.Publish(ctx, listingID, snapshot)
	if err != nil && !apperrors.IsPartialCommit(err) {
		s.abortTerminal(listingID)
		return nil, err
	}
	s.endTerminal(listingID)
	return listing, err
}

// Discard clears the overlay, leaves committed fields untouched and destroys
// the session. With no active session it still clears any abandoned overlay.
func (s *EditorService) Discard(ctx context.Context, listingID, actorID uuid.UUID) error {
	s.mu.Lock()
	if _, ok := s.sessions[listingID]; !ok {
		s.mu.Unlock()
		listing, err := s.store.GetListing(ctx, listingID)
		if err != nil {
			return err
		}
		if listing.OwnerID != actorID {
			return apperrors.ErrPermissionDenied
		}
		return s.drafts.Discard(ctx, listingID)
	}
	s.mu.Unlock()

	if _, err := s.beginTerminal(listingID, actorID, false); err != nil {
		return err
	}
	if err := s.drafts.Discard(ctx, listingID); err != nil {
		s.abortTerminal(listingID)
		return err
	}
	s.endTerminal(listingID)
	return nil
}

// beginTerminal marks the session as entering a terminal operation: the
// debounce timer is canceled, a concurrent terminal attempt is rejected, and
// the caller blocks until any in-flight overlay write has drained. Only after
// all of that may the overlay be cleared.
func (s *EditorService) beginTerminal(listingID, actorID uuid.UUID, requireDirty bool) (map[string]interface{}, error) {
	s.mu.Lock()
	sess, err := s.sessionLocked(listingID, actorID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if sess.closed {
		s.mu.Unlock()
		return nil, &apperrors.ConflictError{
			Resource: "listing " + listingID.String(),
			Actual:   "terminal operation in progress",
		}
	}
	if requireDirty && !sess.dirty {
		s.mu.Unlock()
		return nil, apperrors.ErrNoPendingChanges
	}
	sess.closed = true
	sess.gen++
	if sess.timer != nil {
		sess.timer.Stop()
		sess.timer = nil
	}
	snapshot := copyFields(sess.fields)
	inFlight := sess.inFlight
	s.mu.Unlock()

	if inFlight != nil {
		<-inFlight
	}
	return snapshot, nil
}

func (s *EditorService) abortTerminal(listingID uuid.UUID) {
	s.mu.Lock()
	if sess, ok := s.sessions[listingID]; ok {
		sess.closed = false
	}
	s.mu.Unlock()
}

func (s *EditorService) endTerminal(listingID uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, listingID)
	s.mu.Unlock()
}

func (s *EditorService) sessionLocked(listingID, actorID uuid.UUID) (*editSession, error) {
	sess, ok := s.sessions[listingID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if sess.ownerID != actorID {
		return nil, apperrors.ErrPermissionDenied
	}
	return sess, nil
}

// armAutosaveLocked restarts the debounce timer. The previous pending fire is
// invalidated by the generation bump even if Stop loses the race.
func (s *EditorService) armAutosaveLocked(sess *editSession) {
	sess.gen++
	gen := sess.gen
	if sess.timer != nil {
		sess.timer.Stop()
	}
	listingID := sess.listingID
	sess.timer = time.AfterFunc(s.cfg.AutosaveDebounce, func() {
		s.autosaveFire(listingID, gen)
	})
}

// autosaveFire runs when a debounce window elapses without further edits. It
// snapshots the session, writes the overlay, and settles the status machine.
func (s *EditorService) autosaveFire(listingID uuid.UUID, gen int) {
	s.mu.Lock()
	sess, ok := s.sessions[listingID]
	if !ok || sess.closed || sess.gen != gen {
		s.mu.Unlock()
		return
	}
	sess.autosave = AutosaveSaving
	snapshot := copyFields(sess.fields)
	done := make(chan struct{})
	sess.inFlight = done
	s.mu.Unlock()

	err := s.drafts.WriteOverlay(context.Background(), listingID, snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	close(done)
	if sess.inFlight == done {
		sess.inFlight = nil
	}
	if cur, ok := s.sessions[listingID]; !ok || cur != sess || sess.closed {
		return
	}
	if err != nil {
		logrus.WithError(err).WithField("listing_id", listingID).Warn("autosave failed")
		sess.autosave = AutosaveError
		return
	}
	if sess.gen != gen {
		// Newer edits arrived while saving; their own timer is pending.
		sess.autosave = AutosaveIdle
		return
	}
	sess.autosave = AutosaveSaved
	time.AfterFunc(s.cfg.SavedWindow, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if cur, ok := s.sessions[listingID]; ok && cur == sess &&
			sess.autosave == AutosaveSaved && sess.gen == gen {
			sess.autosave = AutosaveIdle
		}
	})
}

func (s *EditorService) viewLocked(sess *editSession, status models.ListingStatus) *EditSessionView {
	return &EditSessionView{
		ListingID:    sess.listingID,
		Status:       status,
		Fields:       copyFields(sess.fields),
		Dirty:        sess.dirty,
		Autosave:     sess.autosave,
		LegalActions: models.LegalActions(status),
	}
}

func copyFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
