// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kleinmarkt/kleinmarkt-backend/internal/config"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	// Enable UUID extension
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"pgcrypto\"").Error; err != nil {
		return fmt.Errorf("failed to create pgcrypto extension: %w", err)
	}

	// Run auto-migrations
	err := db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Listing{},
		&models.ModerationAudit{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// User indexes
		"CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)",
		"CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)",
		"CREATE INDEX IF NOT EXISTS idx_users_type_status ON users(user_type, status)",

		// Listing indexes
		"CREATE INDEX IF NOT EXISTS idx_listings_owner ON listings(owner_id)",
		"CREATE INDEX IF NOT EXISTS idx_listings_category ON listings(category_id)",
		"CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status)",
		"CREATE INDEX IF NOT EXISTS idx_listings_has_draft ON listings(has_draft) WHERE has_draft",
		"CREATE INDEX IF NOT EXISTS idx_listings_created_at ON listings(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_listings_price ON listings(price)",
		"CREATE INDEX IF NOT EXISTS idx_listings_tags ON listings USING GIN(tags)",

		// Moderation audit indexes
		"CREATE INDEX IF NOT EXISTS idx_moderation_audits_listing ON moderation_audits(listing_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_moderation_audits_actor ON moderation_audits(actor_id)",

		// Category indexes
		"CREATE INDEX IF NOT EXISTS idx_categories_parent ON categories(parent_id)",

		// Full-text search indexes
		"CREATE INDEX IF NOT EXISTS idx_listings_search ON listings USING GIN(to_tsvector('german', title || ' ' || description))",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Seed initial data
func SeedInitialData(db *gorm.DB) error {
	log.Println("Seeding initial data...")

	// Create default admin user
	var adminCount int64
	db.Model(&models.User{}).Where("user_type = ?", models.UserTypeAdmin).Count(&adminCount)

	if adminCount == 0 {
		admin := &models.User{
			Username: "admin",
			Email:    "admin@kleinmarkt.example",
			UserType: models.UserTypeAdmin,
			Status:   models.UserStatusActive,
			ProfileData: models.JSONB{
				"display_name": "Moderation Team",
			},
		}

		if err := admin.SetPassword("admin123!@#"); err != nil {
			return fmt.Errorf("failed to set admin password: %w", err)
		}

		if err := db.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		log.Println("Default admin user created successfully")
	}

	// Create default categories
	defaultCategories := []models.Category{
		{Name: "Electronics", Slug: "electronics"},
		{Name: "Furniture", Slug: "furniture"},
		{Name: "Clothing", Slug: "clothing"},
		{Name: "Vehicles", Slug: "vehicles"},
		{Name: "Books & Media", Slug: "books-media"},
		{Name: "Sports & Leisure", Slug: "sports-leisure"},
		{Name: "Free Stuff", Slug: "free-stuff"},
	}

	for _, category := range defaultCategories {
		var count int64
		db.Model(&models.Category{}).Where("slug = ?", category.Slug).Count(&count)

		if count == 0 {
			if err := db.Create(&category).Error; err != nil {
				log.Printf("Warning: Failed to create category %s: %v", category.Slug, err)
			}
		}
	}

	log.Println("Initial data seeding completed")
	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
