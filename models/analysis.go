package models

import (
	"time"

	"gorm.io/datatypes"
)

// Sentiment values emitted by the extraction service.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// StaffMention is one staff member referenced in a review, role inferred.
type StaffMention struct {
	Name      string `json:"name"`
	Role      string `json:"role,omitempty"`
	Sentiment string `json:"sentiment"`
}

// ItemMention is one menu item referenced in a review.
type ItemMention struct {
	Name      string `json:"name"`
	Polarity  string `json:"polarity"`
	Intensity int    `json:"intensity"` // 1-5
}

// Analysis stores the structured AI extraction result for exactly one review.
// A row exists iff its review's analysis_status is completed.
type Analysis struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	ReviewID uint `json:"review_id" gorm:"uniqueIndex;not null"`

	OverallSentiment string `json:"overall_sentiment" gorm:"size:16;index"`
	Emotion          string `json:"emotion,omitempty"`

	// Per-category sentiment in [-1, 1]; nil means the category was not
	// mentioned in the review.
	FoodScore     *float64 `json:"food_score,omitempty"`
	ServiceScore  *float64 `json:"service_score,omitempty"`
	AmbienceScore *float64 `json:"ambience_score,omitempty"`
	ValueScore    *float64 `json:"value_score,omitempty"`

	Strengths     datatypes.JSON `json:"strengths,omitempty" gorm:"type:jsonb"`
	Opportunities datatypes.JSON `json:"opportunities,omitempty" gorm:"type:jsonb"`

	StaffMentioned datatypes.JSON `json:"staff_mentioned,omitempty" gorm:"type:jsonb"`
	ItemsMentioned datatypes.JSON `json:"items_mentioned,omitempty" gorm:"type:jsonb"`
	SeverityFlags  datatypes.JSON `json:"severity_flags,omitempty" gorm:"type:jsonb"`

	ReturnIntent string `json:"return_intent,omitempty" gorm:"size:16"`
}

// TableName sets the explicit table name.
func (Analysis) TableName() string {
	return "analyses"
}
