package db

import (
	"crypto/rand"
	"encoding/hex"
	"log"

	"github.com/glebarez/sqlite"
	"github.com/skyvault/drivedash/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB initializes the SQLite database connection and runs migrations.
func InitDB(dbPath string) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Auto-migrate all models
	if err := gdb.AutoMigrate(&models.LinkedAccount{}, &models.MirroredFile{}, &models.Config{}); err != nil {
		return nil, err
	}

	// Ensure API key exists (generate on first run)
	ensureAPIKey(gdb)

	return gdb, nil
}

// ensureAPIKey generates the dashboard API key if not exists
func ensureAPIKey(gdb *gorm.DB) {
	var config models.Config
	result := gdb.Where("key = ?", "api_key").First(&config)

	if result.Error != nil {
		// Generate new API key: dd-<32 hex chars>
		keyBytes := make([]byte, 16)
		rand.Read(keyBytes)
		apiKey := "dd-" + hex.EncodeToString(keyBytes)

		gdb.Create(&models.Config{
			Key:   "api_key",
			Value: apiKey,
		})
		log.Printf("🔑 Generated new API key: %s", apiKey)
	}
}

// GetAPIKey retrieves the API key from database
func GetAPIKey(gdb *gorm.DB) string {
	var config models.Config
	gdb.Where("key = ?", "api_key").First(&config)
	return config.Value
}

// RegenerateAPIKey creates a new API key
func RegenerateAPIKey(gdb *gorm.DB) string {
	keyBytes := make([]byte, 16)
	rand.Read(keyBytes)
	apiKey := "dd-" + hex.EncodeToString(keyBytes)

	gdb.Model(&models.Config{}).Where("key = ?", "api_key").Update("value", apiKey)
	log.Printf("🔑 Regenerated API key: %s", apiKey)
	return apiKey
}
