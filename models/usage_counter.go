package models

import "time"

// AIUsageCounter tracks extraction-service calls per day for billing/quota.
// Updated best-effort: a failed counter write never fails the analysis.
type AIUsageCounter struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UpdatedAt time.Time `json:"updated_at"`

	Day   string `json:"day" gorm:"uniqueIndex;size:10;not null"` // YYYY-MM-DD
	Calls int64  `json:"calls"`
}

// TableName sets the explicit table name.
func (AIUsageCounter) TableName() string {
	return "ai_usage_counters"
}
