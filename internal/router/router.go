// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/kleinmarkt/kleinmarkt-backend/internal/config"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/handlers"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/middleware"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/repository"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/services"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize services
	store := repository.NewGormListingStore(db)

	storageService, err := services.NewStorageService(db, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize storage service")
	}

	draftService := services.NewDraftService(store, storageService)
	editorService := services.NewEditorService(store, draftService, services.EditorConfig{
		AutosaveDebounce: time.Duration(cfg.Editor.AutosaveDebounceMs) * time.Millisecond,
		SavedWindow:      time.Duration(cfg.Editor.SavedWindowMs) * time.Millisecond,
		SessionTTL:       time.Duration(cfg.Editor.SessionTTLMinutes) * time.Minute,
	})
	lifecycleService := services.NewLifecycleService(store)
	listingService := services.NewListingService(db, store, storageService)
	moderationService := services.NewModerationService(db, store, services.NewUserTypePolicy(db))

	authService := services.NewAuthService(db, cfg)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	listingHandler := handlers.NewListingHandler(listingService, storageService)
	editorHandler := handlers.NewEditorHandler(editorService, lifecycleService)
	adminHandler := handlers.NewAdminHandler(moderationService)
	categoryHandler := handlers.NewCategoryHandler(db)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/change-password", middleware.AuthRequired(), authHandler.ChangePassword)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// Category routes
		v1.GET("/categories", categoryHandler.GetCategories)

		// Listing routes
		listings := v1.Group("/listings")
		{
			listings.GET("", listingHandler.SearchListings)
			listings.GET("/:id", middleware.OptionalAuth(), listingHandler.GetListing)

			// Authenticated routes
			protected := listings.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", listingHandler.CreateListing)
				protected.GET("/mine", listingHandler.GetMyListings)
				protected.DELETE("/:id", listingHandler.DeleteListing)
				protected.POST("/upload", middleware.UploadRateLimit(), listingHandler.UploadImage)

				// Edit session surface
				protected.POST("/:id/edit", editorHandler.BeginEdit)
				protected.PATCH("/:id/edit", middleware.EditorRateLimit(), editorHandler.UpdateEdit)
				protected.GET("/:id/edit", editorHandler.EditState)
				protected.POST("/:id/publish", editorHandler.Publish)
				protected.POST("/:id/discard", editorHandler.Discard)

				// Lifecycle
				protected.POST("/:id/transition", editorHandler.Transition)
				protected.POST("/:id/duplicate", editorHandler.Duplicate)
			}
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.PUT("/listings/:id/approve", adminHandler.ApproveListing)
			admin.PUT("/listings/:id/reject", adminHandler.RejectListing)
		}
	}

	return r
}
