// internal/handlers/category.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kleinmarkt/kleinmarkt-backend/internal/models"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/utils"
)

type CategoryHandler struct {
	db *gorm.DB
}

func NewCategoryHandler(db *gorm.DB) *CategoryHandler {
	return &CategoryHandler{db: db}
}

// GET /categories
func (h *CategoryHandler) GetCategories(c *gin.Context) {
	var categories []models.Category
	if err := h.db.Where("parent_id IS NULL").Preload("Children").Order("name").Find(&categories).Error; err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, categories)
}
