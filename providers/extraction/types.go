package extraction

// Result is the fixed output schema the extraction service must return for
// one review. A response that does not conform is a failure, never partially
// accepted.
type Result struct {
	OverallSentiment string `json:"overall_sentiment"` // positive | neutral | negative
	Emotion          string `json:"emotion,omitempty"`

	// Per-category sentiment in [-1, 1]; omitted when not mentioned.
	Categories CategoryScores `json:"categories"`

	Strengths     []string `json:"strengths"`
	Opportunities []string `json:"opportunities"`

	StaffMentioned []StaffRef `json:"staff_mentioned"`
	ItemsMentioned []ItemRef  `json:"items_mentioned"`

	SeverityFlags []string `json:"severity_flags"` // quality | wait-time | hygiene
	ReturnIntent  string   `json:"return_intent"`  // yes | no | unknown
}

// CategoryScores holds the four fixed sentiment categories.
type CategoryScores struct {
	Food     *float64 `json:"food,omitempty"`
	Service  *float64 `json:"service,omitempty"`
	Ambience *float64 `json:"ambience,omitempty"`
	Value    *float64 `json:"value,omitempty"`
}

// StaffRef is one staff mention as extracted, role inferred from context.
type StaffRef struct {
	Name      string `json:"name"`
	Role      string `json:"role,omitempty"`
	Sentiment string `json:"sentiment"` // positive | neutral | negative
}

// ItemRef is one menu-item mention as extracted.
type ItemRef struct {
	Name      string `json:"name"`
	Polarity  string `json:"polarity"`  // positive | neutral | negative
	Intensity int    `json:"intensity"` // 1-5
}
