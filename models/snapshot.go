package models

import (
	"time"

	"gorm.io/datatypes"
)

// Zone names for the Flavor Index score buckets.
const (
	ZoneWorldClass       = "world-class"
	ZoneExcellent        = "excellent"
	ZoneGreat            = "great"
	ZoneGood             = "good"
	ZoneNeedsImprovement = "needs-improvement"
)

// CategoryStat is the rollup for one sentiment category (food, service,
// ambience, value) over a period.
type CategoryStat struct {
	Category    string  `json:"category"`
	MeanScore   float64 `json:"mean_score"`
	Mentions    int     `json:"mentions"`
	VolumeShare float64 `json:"volume_share"` // percent of all category mentions
}

// LeaderboardEntry is one grouped staff or menu-item mention rollup.
type LeaderboardEntry struct {
	Name            string  `json:"name"`
	Role            string  `json:"role,omitempty"`
	Mentions        int     `json:"mentions"`
	PositivePercent float64 `json:"positive_percent"`
}

// FlavorIndexSnapshot is the derived aggregation output for one restaurant
// and period. It is a cache, not a source of truth: recomputed on demand and
// always replaced wholesale, never mutated in place.
type FlavorIndexSnapshot struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RestaurantID uint      `json:"restaurant_id" gorm:"uniqueIndex:idx_snapshots_period,priority:1;not null"`
	PeriodStart  time.Time `json:"period_start" gorm:"uniqueIndex:idx_snapshots_period,priority:2;not null"`
	PeriodEnd    time.Time `json:"period_end" gorm:"uniqueIndex:idx_snapshots_period,priority:3;not null"`

	Score float64  `json:"score"`
	Zone  string   `json:"zone" gorm:"size:32"`
	Delta *float64 `json:"delta,omitempty"` // nil when the prior period has no reviews

	AvgRating    float64 `json:"avg_rating"`
	TotalReviews int64   `json:"total_reviews"`

	StarDistribution datatypes.JSON `json:"star_distribution" gorm:"type:jsonb"`
	CategoryStats    datatypes.JSON `json:"category_stats" gorm:"type:jsonb"`
	StaffLeaderboard datatypes.JSON `json:"staff_leaderboard" gorm:"type:jsonb"`
	ItemMentions     datatypes.JSON `json:"item_mentions" gorm:"type:jsonb"`
}

// TableName sets the explicit table name.
func (FlavorIndexSnapshot) TableName() string {
	return "flavor_index_snapshots"
}
