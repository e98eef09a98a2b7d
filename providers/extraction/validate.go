package extraction

import "fmt"

func validSentiment(s string) bool {
	return s == "positive" || s == "neutral" || s == "negative"
}

func validSeverityFlag(s string) bool {
	return s == "quality" || s == "wait-time" || s == "hygiene"
}

func validReturnIntent(s string) bool {
	return s == "yes" || s == "no" || s == "unknown"
}

func validScore(v *float64) bool {
	return v == nil || (*v >= -1 && *v <= 1)
}

// Validate enforces the output schema strictly. Any violation fails the
// whole result.
func (r *Result) Validate() error {
	if !validSentiment(r.OverallSentiment) {
		return fmt.Errorf("invalid overall_sentiment %q", r.OverallSentiment)
	}
	if !validScore(r.Categories.Food) || !validScore(r.Categories.Service) ||
		!validScore(r.Categories.Ambience) || !validScore(r.Categories.Value) {
		return fmt.Errorf("category score out of range [-1, 1]")
	}
	for _, s := range r.StaffMentioned {
		if s.Name == "" {
			return fmt.Errorf("staff mention with empty name")
		}
		if !validSentiment(s.Sentiment) {
			return fmt.Errorf("invalid staff sentiment %q", s.Sentiment)
		}
	}
	for _, it := range r.ItemsMentioned {
		if it.Name == "" {
			return fmt.Errorf("item mention with empty name")
		}
		if !validSentiment(it.Polarity) {
			return fmt.Errorf("invalid item polarity %q", it.Polarity)
		}
		if it.Intensity < 1 || it.Intensity > 5 {
			return fmt.Errorf("item intensity %d out of range 1-5", it.Intensity)
		}
	}
	for _, f := range r.SeverityFlags {
		if !validSeverityFlag(f) {
			return fmt.Errorf("unknown severity flag %q", f)
		}
	}
	if !validReturnIntent(r.ReturnIntent) {
		return fmt.Errorf("invalid return_intent %q", r.ReturnIntent)
	}
	return nil
}
