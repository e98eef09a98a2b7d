package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"review-radar/models"
)

// newTestDB opens an isolated in-memory database with the pipeline schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1) // one connection, one in-memory database

	require.NoError(t, db.AutoMigrate(&models.Review{}, &models.Analysis{}, &models.ScrapeRun{}))
	return db
}

func seedReview(t *testing.T, db *gorm.DB, externalID string, status models.AnalysisStatus) models.Review {
	t.Helper()
	review := models.Review{
		RestaurantID:   1,
		Platform:       models.PlatformGoogle,
		ExternalID:     externalID,
		Rating:         4,
		Text:           "solid meal",
		IngestedAt:     time.Now().UTC(),
		AnalysisStatus: status,
	}
	require.NoError(t, db.Create(&review).Error)
	return review
}

func loadReview(t *testing.T, db *gorm.DB, id uint) models.Review {
	t.Helper()
	var review models.Review
	require.NoError(t, db.First(&review, id).Error)
	return review
}
