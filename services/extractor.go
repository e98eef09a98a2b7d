package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"review-radar/models"
	"review-radar/providers/extraction"
)

// ExtractionClient is the external AI extraction call, one review per call.
type ExtractionClient interface {
	Extract(ctx context.Context, reviewText string, rating int) (*extraction.Result, error)
}

// AnalysisStore finalizes claimed reviews. Implemented by ReviewStore.
type AnalysisStore interface {
	GetClaimed(ctx context.Context, ids []uint) ([]models.Review, error)
	Complete(ctx context.Context, reviewID uint, analysis *models.Analysis) error
	Fail(ctx context.Context, reviewID uint, reason string) error
}

// Claimer hands out batches of pending reviews. Implemented by ClaimService.
type Claimer interface {
	Claim(ctx context.Context, limit int) ([]uint, error)
}

// UsageRecorder counts successful AI calls, best effort.
type UsageRecorder interface {
	RecordCall(ctx context.Context)
}

// ReviewOutcome is the per-review result within one processed batch.
type ReviewOutcome struct {
	ReviewID uint                  `json:"review_id"`
	Status   models.AnalysisStatus `json:"status"`
	Error    string                `json:"error,omitempty"`
}

// BatchResult summarizes one worker invocation.
type BatchResult struct {
	Total   int             `json:"total"`
	Success int             `json:"success"`
	Failed  int             `json:"failed"`
	Results []ReviewOutcome `json:"results"`
}

// ExtractionWorker processes claimed reviews against the external AI
// service. Every review's outcome is committed independently: one failure
// never aborts or rolls back its batch siblings.
type ExtractionWorker struct {
	Store   AnalysisStore
	Claimer Claimer
	AI      ExtractionClient
	Usage   UsageRecorder
	Logger  *zap.Logger

	CompletedCounter prometheus.Counter
	FailedCounter    prometheus.Counter
}

// ProcessNext claims up to limit pending reviews and processes them. This is
// the entry point the orchestrator fans out over.
func (w *ExtractionWorker) ProcessNext(ctx context.Context, limit int) (BatchResult, error) {
	ids, err := w.Claimer.Claim(ctx, limit)
	if err != nil {
		return BatchResult{}, err
	}
	return w.Process(ctx, ids)
}

// Process runs extraction for an already-claimed batch.
func (w *ExtractionWorker) Process(ctx context.Context, ids []uint) (BatchResult, error) {
	result := BatchResult{}
	if len(ids) == 0 {
		return result, nil
	}

	reviews, err := w.Store.GetClaimed(ctx, ids)
	if err != nil {
		return result, err
	}
	result.Total = len(reviews)

	for _, review := range reviews {
		outcome := w.processOne(ctx, review)
		result.Results = append(result.Results, outcome)
		if outcome.Status == models.StatusCompleted {
			result.Success++
		} else {
			result.Failed++
		}
	}
	return result, nil
}

func (w *ExtractionWorker) processOne(ctx context.Context, review models.Review) ReviewOutcome {
	log := w.Logger.With(zap.Uint("review_id", review.ID), zap.String("platform", review.Platform))

	extracted, err := w.AI.Extract(ctx, review.Text, review.Rating)
	if err != nil {
		log.Warn("Extraction failed", zap.Error(err))
		return w.fail(ctx, review.ID, err.Error())
	}

	// Usage counts only once a schema-valid response is in hand; a failed
	// counter write must not affect the outcome.
	if w.Usage != nil {
		w.Usage.RecordCall(ctx)
	}

	analysis := buildAnalysis(extracted)
	if err := w.Store.Complete(ctx, review.ID, analysis); err != nil {
		if errors.Is(err, models.ErrInvalidStateTransition) {
			// The review left processing while we were extracting (sweep or
			// operator). Its state is authoritative; drop our result.
			log.Warn("Review no longer claimable, discarding analysis")
			return ReviewOutcome{ReviewID: review.ID, Status: models.StatusFailed, Error: err.Error()}
		}
		log.Error("Completion failed", zap.Error(err))
		return w.fail(ctx, review.ID, "finalize failed: "+err.Error())
	}

	if w.CompletedCounter != nil {
		w.CompletedCounter.Inc()
	}
	return ReviewOutcome{ReviewID: review.ID, Status: models.StatusCompleted}
}

func (w *ExtractionWorker) fail(ctx context.Context, reviewID uint, reason string) ReviewOutcome {
	if err := w.Store.Fail(ctx, reviewID, reason); err != nil {
		w.Logger.Error("Failed to mark review failed", zap.Uint("review_id", reviewID), zap.Error(err))
	}
	if w.FailedCounter != nil {
		w.FailedCounter.Inc()
	}
	return ReviewOutcome{ReviewID: reviewID, Status: models.StatusFailed, Error: reason}
}

// buildAnalysis maps a validated extraction result into the analysis row.
func buildAnalysis(r *extraction.Result) *models.Analysis {
	staff := make([]models.StaffMention, 0, len(r.StaffMentioned))
	for _, s := range r.StaffMentioned {
		staff = append(staff, models.StaffMention{Name: s.Name, Role: s.Role, Sentiment: s.Sentiment})
	}
	items := make([]models.ItemMention, 0, len(r.ItemsMentioned))
	for _, it := range r.ItemsMentioned {
		items = append(items, models.ItemMention{Name: it.Name, Polarity: it.Polarity, Intensity: it.Intensity})
	}

	return &models.Analysis{
		OverallSentiment: r.OverallSentiment,
		Emotion:          r.Emotion,
		FoodScore:        r.Categories.Food,
		ServiceScore:     r.Categories.Service,
		AmbienceScore:    r.Categories.Ambience,
		ValueScore:       r.Categories.Value,
		Strengths:        mustJSON(r.Strengths),
		Opportunities:    mustJSON(r.Opportunities),
		StaffMentioned:   mustJSON(staff),
		ItemsMentioned:   mustJSON(items),
		SeverityFlags:    mustJSON(r.SeverityFlags),
		ReturnIntent:     r.ReturnIntent,
	}
}

func mustJSON(v interface{}) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(data)
}
