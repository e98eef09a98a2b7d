package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scorePtr(v float64) *float64 { return &v }

func conformingResult() *Result {
	return &Result{
		OverallSentiment: "positive",
		Emotion:          "delighted",
		Categories: CategoryScores{
			Food:    scorePtr(0.9),
			Service: scorePtr(-0.3),
		},
		Strengths:      []string{"truffle pasta"},
		Opportunities:  []string{"wait time"},
		StaffMentioned: []StaffRef{{Name: "Maria", Role: "server", Sentiment: "positive"}},
		ItemsMentioned: []ItemRef{{Name: "Truffle Pasta", Polarity: "positive", Intensity: 5}},
		SeverityFlags:  []string{"wait-time"},
		ReturnIntent:   "yes",
	}
}

func TestValidateAcceptsConformingResult(t *testing.T) {
	require.NoError(t, conformingResult().Validate())
}

func TestValidateAcceptsMinimalResult(t *testing.T) {
	r := &Result{OverallSentiment: "neutral", ReturnIntent: "unknown"}
	require.NoError(t, r.Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Result)
	}{
		{"bad overall sentiment", func(r *Result) { r.OverallSentiment = "ecstatic" }},
		{"empty overall sentiment", func(r *Result) { r.OverallSentiment = "" }},
		{"category score above range", func(r *Result) { r.Categories.Food = scorePtr(1.2) }},
		{"category score below range", func(r *Result) { r.Categories.Value = scorePtr(-1.01) }},
		{"staff without name", func(r *Result) { r.StaffMentioned[0].Name = "" }},
		{"staff bad sentiment", func(r *Result) { r.StaffMentioned[0].Sentiment = "meh" }},
		{"item without name", func(r *Result) { r.ItemsMentioned[0].Name = "" }},
		{"item bad polarity", func(r *Result) { r.ItemsMentioned[0].Polarity = "mixed" }},
		{"item intensity too low", func(r *Result) { r.ItemsMentioned[0].Intensity = 0 }},
		{"item intensity too high", func(r *Result) { r.ItemsMentioned[0].Intensity = 6 }},
		{"unknown severity flag", func(r *Result) { r.SeverityFlags = []string{"noise"} }},
		{"bad return intent", func(r *Result) { r.ReturnIntent = "maybe" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := conformingResult()
			tt.mutate(r)
			assert.Error(t, r.Validate())
		})
	}
}

func TestValidateBoundaryScores(t *testing.T) {
	r := conformingResult()
	r.Categories.Food = scorePtr(1)
	r.Categories.Service = scorePtr(-1)
	assert.NoError(t, r.Validate())
}
