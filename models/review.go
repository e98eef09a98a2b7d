package models

import (
	"errors"
	"time"
)

// AnalysisStatus is the lifecycle state of a review in the extraction pipeline.
type AnalysisStatus string

const (
	StatusPending    AnalysisStatus = "pending"
	StatusProcessing AnalysisStatus = "processing"
	StatusCompleted  AnalysisStatus = "completed"
	StatusFailed     AnalysisStatus = "failed"
)

// ErrInvalidStateTransition is returned when a status change is attempted
// that the lifecycle does not allow.
var ErrInvalidStateTransition = errors.New("invalid analysis status transition")

// CanTransitionTo reports whether s -> target is a legal lifecycle move.
// The only backward edge is failed -> pending (operator retry) plus the
// stuck-processing sweep (processing -> pending).
func (s AnalysisStatus) CanTransitionTo(target AnalysisStatus) bool {
	switch s {
	case StatusPending:
		return target == StatusProcessing
	case StatusProcessing:
		return target == StatusCompleted || target == StatusFailed || target == StatusPending
	case StatusFailed:
		return target == StatusPending
	default:
		return false
	}
}

// Terminal reports whether the status is an end state of the pipeline.
func (s AnalysisStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Review is one customer review as scraped from a third-party platform.
// (restaurant_id, platform, external_id) is the dedup key: re-ingesting the
// same external review updates mutable fields but never duplicates the row
// and never touches analysis_status.
type Review struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RestaurantID uint   `json:"restaurant_id" gorm:"index;uniqueIndex:idx_reviews_dedup_key,priority:1;not null"`
	Platform     string `json:"platform" gorm:"uniqueIndex:idx_reviews_dedup_key,priority:2;size:32;not null"`
	ExternalID   string `json:"external_id" gorm:"uniqueIndex:idx_reviews_dedup_key,priority:3;size:256;not null"`

	Rating   int        `json:"rating" gorm:"not null"`
	Text     string     `json:"text" gorm:"type:text"`
	Author   string     `json:"author"`
	PostedAt *time.Time `json:"posted_at,omitempty" gorm:"index"`

	IngestedAt     time.Time      `json:"ingested_at" gorm:"index"`
	AnalysisStatus AnalysisStatus `json:"analysis_status" gorm:"index;size:16;default:'pending'"`

	// Set when the review is claimed; the recovery sweep keys off this.
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`

	// Why the last extraction attempt failed, for operator visibility.
	FailureReason string `json:"failure_reason,omitempty"`
}

// TableName sets the explicit table name.
func (Review) TableName() string {
	return "reviews"
}

// Platforms the normalizer understands.
const (
	PlatformGoogle      = "google"
	PlatformOpenTable   = "opentable"
	PlatformTripAdvisor = "tripadvisor"
)

// KnownPlatform reports whether the normalizer has a mapping for p.
func KnownPlatform(p string) bool {
	switch p {
	case PlatformGoogle, PlatformOpenTable, PlatformTripAdvisor:
		return true
	}
	return false
}
