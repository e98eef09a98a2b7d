package models

import "time"

// ScrapeRun is the provenance record for one ingestion batch. Write-once per
// webhook notification; used for audit, never for pipeline logic.
type ScrapeRun struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	RunID        string `json:"run_id" gorm:"index;size:128"`
	RestaurantID uint   `json:"restaurant_id" gorm:"index"`
	Platform     string `json:"platform" gorm:"size:32"`
	TenantID     string `json:"tenant_id,omitempty" gorm:"size:128"`
	Status       string `json:"status" gorm:"size:32"`

	ReviewsFound int `json:"reviews_found"`
	ReviewsNew   int `json:"reviews_new"`
	Errors       int `json:"errors"`

	// Where the raw payload was archived, empty if archival failed.
	ArchiveLink string `json:"archive_link,omitempty"`
}

// TableName sets the explicit table name.
func (ScrapeRun) TableName() string {
	return "scrape_runs"
}
