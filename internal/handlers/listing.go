// internal/handlers/listing.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kleinmarkt/kleinmarkt-backend/internal/models"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/services"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/utils"
)

type ListingHandler struct {
	listingService *services.ListingService
	storageService *services.StorageService
}

func NewListingHandler(listingService *services.ListingService, storageService *services.StorageService) *ListingHandler {
	return &ListingHandler{
		listingService: listingService,
		storageService: storageService,
	}
}

// GET /listings
func (h *ListingHandler) SearchListings(c *gin.Context) {
	params := services.ListingSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
	}

	if categoryID := c.Query("category_id"); categoryID != "" {
		if parsed, err := uuid.Parse(categoryID); err == nil {
			params.CategoryID = &parsed
		}
	}
	if priceMin := c.Query("price_min"); priceMin != "" {
		if parsed, err := strconv.ParseFloat(priceMin, 64); err == nil {
			params.PriceMin = &parsed
		}
	}
	if priceMax := c.Query("price_max"); priceMax != "" {
		if parsed, err := strconv.ParseFloat(priceMax, 64); err == nil {
			params.PriceMax = &parsed
		}
	}
	if tags := c.QueryArray("tag"); len(tags) > 0 {
		params.Tags = tags
	}
	params.FreeOnly = c.Query("free_only") == "true"

	listings, total, err := h.listingService.SearchListings(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(listings, total, params.PaginationParams))
}

// GET /listings/:id
func (h *ListingHandler) GetListing(c *gin.Context) {
	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid listing ID", nil)
		return
	}

	var viewerID *uuid.UUID
	if userID, ok := currentUserID(c); ok {
		viewerID = &userID
	}

	listing, err := h.listingService.GetListing(c.Request.Context(), listingID, viewerID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, listing)
}

// POST /listings
func (h *ListingHandler) CreateListing(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	listing, err := h.listingService.CreateListing(c.Request.Context(), userID, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, listing)
}

// GET /listings/mine
func (h *ListingHandler) GetMyListings(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	listings, total, err := h.listingService.GetOwnerListings(c.Request.Context(), userID, params)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(listings, total, params))
}

// DELETE /listings/:id
func (h *ListingHandler) DeleteListing(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid listing ID", nil)
		return
	}

	userType, _ := utils.GetUserTypeFromContext(c)
	isAdmin := userType == string(models.UserTypeAdmin)

	if err := h.listingService.DeleteListing(c.Request.Context(), listingID, userID, isAdmin); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "Listing deleted"})
}

// POST /listings/upload
func (h *ListingHandler) UploadImage(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "No file provided", nil)
		return
	}
	defer file.Close()

	if err := h.storageService.ValidateImage(file); err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	options := h.storageService.GetDefaultUploadOptions("listings")
	result, err := h.storageService.UploadFile(file, header, options)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, result)
}
