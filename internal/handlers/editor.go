// internal/handlers/editor.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kleinmarkt/kleinmarkt-backend/internal/apperrors"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/models"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/services"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/utils"
)

// EditorHandler exposes the edit session surface: begin/update/state plus the
// terminal publish and discard operations, and the lifecycle transitions.
type EditorHandler struct {
	editorService    *services.EditorService
	lifecycleService *services.LifecycleService
}

func NewEditorHandler(editorService *services.EditorService, lifecycleService *services.LifecycleService) *EditorHandler {
	return &EditorHandler{
		editorService:    editorService,
		lifecycleService: lifecycleService,
	}
}

// POST /listings/:id/edit
func (h *EditorHandler) BeginEdit(c *gin.Context) {
	userID, listingID, ok := h.subject(c)
	if !ok {
		return
	}

	view, err := h.editorService.Begin(c.Request.Context(), listingID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, view)
}

// PATCH /listings/:id/edit
func (h *EditorHandler) UpdateEdit(c *gin.Context) {
	userID, listingID, ok := h.subject(c)
	if !ok {
		return
	}

	var changes map[string]interface{}
	if err := c.ShouldBindJSON(&changes); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}
	if len(changes) == 0 {
		utils.BadRequestResponse(c, "No fields to update", nil)
		return
	}

	view, err := h.editorService.Update(c.Request.Context(), listingID, userID, changes)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, view)
}

// GET /listings/:id/edit
func (h *EditorHandler) EditState(c *gin.Context) {
	userID, listingID, ok := h.subject(c)
	if !ok {
		return
	}

	view, err := h.editorService.State(c.Request.Context(), listingID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, view)
}

// POST /listings/:id/publish
func (h *EditorHandler) Publish(c *gin.Context) {
	userID, listingID, ok := h.subject(c)
	if !ok {
		return
	}

	listing, err := h.editorService.Publish(c.Request.Context(), listingID, userID)
	if err != nil {
		// A partial commit still committed the scalar fields; the client
		// gets the listing back plus a hint to retry the image step.
		if apperrors.IsPartialCommit(err) && listing != nil {
			utils.SuccessResponseWithMeta(c, listing, gin.H{
				"warning": "images_pending",
			})
			return
		}
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, listing)
}

// POST /listings/:id/discard
func (h *EditorHandler) Discard(c *gin.Context) {
	userID, listingID, ok := h.subject(c)
	if !ok {
		return
	}

	if err := h.editorService.Discard(c.Request.Context(), listingID, userID); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "Draft discarded"})
}

// POST /listings/:id/transition
func (h *EditorHandler) Transition(c *gin.Context) {
	userID, listingID, ok := h.subject(c)
	if !ok {
		return
	}

	var req struct {
		Action string `json:"action" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	listing, err := h.lifecycleService.Apply(c.Request.Context(), listingID, userID, models.OwnerAction(req.Action))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, listing)
}

// POST /listings/:id/duplicate
func (h *EditorHandler) Duplicate(c *gin.Context) {
	userID, listingID, ok := h.subject(c)
	if !ok {
		return
	}

	listing, err := h.lifecycleService.Duplicate(c.Request.Context(), listingID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, listing)
}

// subject resolves the authenticated user and the listing id from the route,
// writing the error response itself when either is missing.
func (h *EditorHandler) subject(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, uuid.Nil, false
	}

	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid listing ID", nil)
		return uuid.Nil, uuid.Nil, false
	}

	return userID, listingID, true
}
