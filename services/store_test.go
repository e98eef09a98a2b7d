package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"review-radar/models"
)

func TestCompleteFlipsStatusAndWritesAnalysis(t *testing.T) {
	db := newTestDB(t)
	store := NewReviewStore(db, zap.NewNop())
	review := seedReview(t, db, "g-1", models.StatusProcessing)

	err := store.Complete(context.Background(), review.ID, &models.Analysis{
		OverallSentiment: models.SentimentPositive,
		ReturnIntent:     "yes",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, loadReview(t, db, review.ID).AnalysisStatus)

	var analysis models.Analysis
	require.NoError(t, db.Where("review_id = ?", review.ID).First(&analysis).Error)
	assert.Equal(t, models.SentimentPositive, analysis.OverallSentiment)
}

func TestCompleteRollsBackWhenNotProcessing(t *testing.T) {
	db := newTestDB(t)
	store := NewReviewStore(db, zap.NewNop())
	review := seedReview(t, db, "g-1", models.StatusPending)

	err := store.Complete(context.Background(), review.ID, &models.Analysis{
		OverallSentiment: models.SentimentPositive,
	})
	require.ErrorIs(t, err, models.ErrInvalidStateTransition)

	// Both or neither: the analysis insert rolled back with the failed flip.
	var analysisCount int64
	require.NoError(t, db.Model(&models.Analysis{}).Count(&analysisCount).Error)
	assert.Equal(t, int64(0), analysisCount)
	assert.Equal(t, models.StatusPending, loadReview(t, db, review.ID).AnalysisStatus)
}

func TestCompleteRejectsTerminalRow(t *testing.T) {
	db := newTestDB(t)
	store := NewReviewStore(db, zap.NewNop())
	review := seedReview(t, db, "g-1", models.StatusFailed)

	err := store.Complete(context.Background(), review.ID, &models.Analysis{
		OverallSentiment: models.SentimentNeutral,
	})
	require.ErrorIs(t, err, models.ErrInvalidStateTransition)
	assert.ErrorContains(t, err, "failed -> completed")
}

func TestFailRecordsReason(t *testing.T) {
	db := newTestDB(t)
	store := NewReviewStore(db, zap.NewNop())
	review := seedReview(t, db, "g-1", models.StatusProcessing)

	require.NoError(t, store.Fail(context.Background(), review.ID, "upstream timeout"))

	got := loadReview(t, db, review.ID)
	assert.Equal(t, models.StatusFailed, got.AnalysisStatus)
	assert.Equal(t, "upstream timeout", got.FailureReason)

	// A second Fail finds no processing row.
	err := store.Fail(context.Background(), review.ID, "again")
	require.ErrorIs(t, err, models.ErrInvalidStateTransition)
	assert.Equal(t, "upstream timeout", loadReview(t, db, review.ID).FailureReason)
}

func TestFailMissingReview(t *testing.T) {
	db := newTestDB(t)
	store := NewReviewStore(db, zap.NewNop())

	err := store.Fail(context.Background(), 999, "whatever")
	require.ErrorIs(t, err, models.ErrInvalidStateTransition)
	assert.ErrorContains(t, err, "not found")
}

func TestGetClaimedFiltersNonProcessing(t *testing.T) {
	db := newTestDB(t)
	store := NewReviewStore(db, zap.NewNop())
	claimed := seedReview(t, db, "g-1", models.StatusProcessing)
	pending := seedReview(t, db, "g-2", models.StatusPending)

	reviews, err := store.GetClaimed(context.Background(), []uint{claimed.ID, pending.ID})
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, claimed.ID, reviews[0].ID)
}
