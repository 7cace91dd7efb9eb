// internal/handlers/editor_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleinmarkt/kleinmarkt-backend/internal/apperrors"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/models"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/services"
)

// memStore is a minimal in-memory ListingStore for handler tests.
type memStore struct {
	mu       sync.Mutex
	listings map[uuid.UUID]*models.Listing
}

func newMemStore() *memStore {
	return &memStore{listings: make(map[uuid.UUID]*models.Listing)}
}

func (m *memStore) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	listing, ok := m.listings[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := *listing
	return &out, nil
}

func (m *memStore) CreateListing(ctx context.Context, listing *models.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if listing.ID == uuid.Nil {
		listing.ID = uuid.New()
	}
	m.listings[listing.ID] = listing
	return nil
}

func (m *memStore) DeleteListing(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listings, id)
	return nil
}

func (m *memStore) UpdateStatus(ctx context.Context, id uuid.UUID, from []models.ListingStatus, to models.ListingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	listing, ok := m.listings[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	for _, status := range from {
		if listing.Status == status {
			listing.Status = to
			return nil
		}
	}
	return &apperrors.ConflictError{Resource: "listing", Actual: string(listing.Status)}
}

func (m *memStore) WriteOverlay(ctx context.Context, id uuid.UUID, fields models.JSONB) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	listing, ok := m.listings[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	now := time.Now()
	listing.HasDraft = true
	listing.DraftData = fields
	listing.DraftUpdatedAt = &now
	return nil
}

func (m *memStore) ClearOverlay(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	listing, ok := m.listings[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	listing.HasDraft = false
	listing.DraftData = nil
	listing.DraftUpdatedAt = nil
	return nil
}

func (m *memStore) CommitFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	listing, ok := m.listings[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if title, ok := fields[models.FieldTitle].(string); ok {
		listing.Title = title
	}
	if price, ok := fields[models.FieldPrice].(float64); ok {
		listing.Price = price
	}
	listing.HasDraft = false
	listing.DraftData = nil
	listing.DraftUpdatedAt = nil
	if listing.Status == models.StatusDraft {
		listing.Status = models.StatusPublished
	}
	return nil
}

func setupEditorRouter(store *memStore, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)

	drafts := services.NewDraftService(store, nil)
	editor := services.NewEditorService(store, drafts, services.EditorConfig{
		AutosaveDebounce: 10 * time.Millisecond,
		SavedWindow:      20 * time.Millisecond,
	})
	lifecycle := services.NewLifecycleService(store)
	handler := NewEditorHandler(editor, lifecycle)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", userID.String())
		c.Next()
	})
	r.POST("/v1/listings/:id/edit", handler.BeginEdit)
	r.PATCH("/v1/listings/:id/edit", handler.UpdateEdit)
	r.GET("/v1/listings/:id/edit", handler.EditState)
	r.POST("/v1/listings/:id/publish", handler.Publish)
	r.POST("/v1/listings/:id/discard", handler.Discard)
	r.POST("/v1/listings/:id/transition", handler.Transition)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(payload)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestEditPublishFlowOverHTTP(t *testing.T) {
	store := newMemStore()
	owner := uuid.New()
	listing := &models.Listing{
		BaseModel: models.BaseModel{ID: uuid.New()},
		OwnerID:   owner,
		Title:     "Old sofa",
		Price:     40,
		Status:    models.StatusDraft,
	}
	store.listings[listing.ID] = listing
	r := setupEditorRouter(store, owner)

	base := "/v1/listings/" + listing.ID.String()

	// Begin
	w := doJSON(t, r, "POST", base+"/edit", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var begin struct {
		Data struct {
			Dirty  bool                   `json:"dirty"`
			Fields map[string]interface{} `json:"fields"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &begin))
	assert.False(t, begin.Data.Dirty)
	assert.Equal(t, "Old sofa", begin.Data.Fields["title"])

	// Edit
	w = doJSON(t, r, "PATCH", base+"/edit", map[string]interface{}{
		"title": "Cozy sofa",
		"price": 55,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Publish
	w = doJSON(t, r, "POST", base+"/publish", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var publish struct {
		Data struct {
			Title  string               `json:"title"`
			Status models.ListingStatus `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &publish))
	assert.Equal(t, "Cozy sofa", publish.Data.Title)
	assert.Equal(t, models.StatusPublished, publish.Data.Status)

	// The session is gone; state returns 404.
	w = doJSON(t, r, "GET", base+"/edit", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublishWithoutChangesReturns400(t *testing.T) {
	store := newMemStore()
	owner := uuid.New()
	listing := &models.Listing{
		BaseModel: models.BaseModel{ID: uuid.New()},
		OwnerID:   owner,
		Title:     "Old sofa",
		Status:    models.StatusDraft,
	}
	store.listings[listing.ID] = listing
	r := setupEditorRouter(store, owner)

	base := "/v1/listings/" + listing.ID.String()
	w := doJSON(t, r, "POST", base+"/edit", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, "POST", base+"/publish", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "NO_PENDING_CHANGES", resp.Error.Code)
}

func TestIllegalTransitionReturns409(t *testing.T) {
	store := newMemStore()
	owner := uuid.New()
	listing := &models.Listing{
		BaseModel: models.BaseModel{ID: uuid.New()},
		OwnerID:   owner,
		Title:     "Old sofa",
		Status:    models.StatusSold,
	}
	store.listings[listing.ID] = listing
	r := setupEditorRouter(store, owner)

	w := doJSON(t, r, "POST", "/v1/listings/"+listing.ID.String()+"/transition", map[string]interface{}{
		"action": "publish",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}
