// internal/handlers/admin.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kleinmarkt/kleinmarkt-backend/internal/services"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/utils"
)

type AdminHandler struct {
	moderationService *services.ModerationService
}

func NewAdminHandler(moderationService *services.ModerationService) *AdminHandler {
	return &AdminHandler{
		moderationService: moderationService,
	}
}

// PUT /admin/listings/:id/approve
func (h *AdminHandler) ApproveListing(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid listing ID", nil)
		return
	}

	listing, err := h.moderationService.Approve(c.Request.Context(), actorID, listingID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, listing)
}

// PUT /admin/listings/:id/reject
func (h *AdminHandler) RejectListing(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid listing ID", nil)
		return
	}

	var req struct {
		Reason string `json:"reason" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	listing, err := h.moderationService.Reject(c.Request.Context(), actorID, listingID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, listing)
}
