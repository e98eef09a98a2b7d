package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"review-radar/models"
)

func claimReviewAt(t *testing.T, db *gorm.DB, id uint, claimedAt time.Time) {
	t.Helper()
	require.NoError(t, db.Model(&models.Review{}).Where("id = ?", id).
		Update("claimed_at", claimedAt).Error)
}

func TestReclaimStuck(t *testing.T) {
	db := newTestDB(t)
	claims := NewClaimService(db, zap.NewNop(), 50)

	stuck := seedReview(t, db, "g-1", models.StatusProcessing)
	claimReviewAt(t, db, stuck.ID, time.Now().UTC().Add(-time.Hour))
	fresh := seedReview(t, db, "g-2", models.StatusProcessing)
	claimReviewAt(t, db, fresh.ID, time.Now().UTC())

	count, err := claims.ReclaimStuck(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// The stale claim is pending and claimable again; the live one keeps its claim.
	got := loadReview(t, db, stuck.ID)
	assert.Equal(t, models.StatusPending, got.AnalysisStatus)
	assert.Nil(t, got.ClaimedAt)
	assert.Equal(t, models.StatusProcessing, loadReview(t, db, fresh.ID).AnalysisStatus)

	pending, err := claims.PendingCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}

func TestReclaimStuckIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	claims := NewClaimService(db, zap.NewNop(), 50)

	stuck := seedReview(t, db, "g-1", models.StatusProcessing)
	claimReviewAt(t, db, stuck.ID, time.Now().UTC().Add(-time.Hour))

	count, err := claims.ReclaimStuck(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = claims.ReclaimStuck(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestResetToPendingOnlyTouchesFailed(t *testing.T) {
	db := newTestDB(t)
	claims := NewClaimService(db, zap.NewNop(), 50)

	failed := seedReview(t, db, "g-1", models.StatusFailed)
	require.NoError(t, db.Model(&models.Review{}).Where("id = ?", failed.ID).
		Update("failure_reason", "upstream timeout").Error)
	completed := seedReview(t, db, "g-2", models.StatusCompleted)
	processing := seedReview(t, db, "g-3", models.StatusProcessing)

	count, err := claims.ResetToPending(context.Background(), ResetFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got := loadReview(t, db, failed.ID)
	assert.Equal(t, models.StatusPending, got.AnalysisStatus)
	assert.Empty(t, got.FailureReason)
	assert.Nil(t, got.ClaimedAt)

	assert.Equal(t, models.StatusCompleted, loadReview(t, db, completed.ID).AnalysisStatus)
	assert.Equal(t, models.StatusProcessing, loadReview(t, db, processing.ID).AnalysisStatus)
}

func TestResetToPendingHonorsFilter(t *testing.T) {
	db := newTestDB(t)
	claims := NewClaimService(db, zap.NewNop(), 50)

	first := seedReview(t, db, "g-1", models.StatusFailed)
	second := seedReview(t, db, "g-2", models.StatusFailed)

	count, err := claims.ResetToPending(context.Background(), ResetFilter{ReviewIDs: []uint{first.ID}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	assert.Equal(t, models.StatusPending, loadReview(t, db, first.ID).AnalysisStatus)
	assert.Equal(t, models.StatusFailed, loadReview(t, db, second.ID).AnalysisStatus)
}

func TestStatusCounts(t *testing.T) {
	db := newTestDB(t)
	claims := NewClaimService(db, zap.NewNop(), 50)

	seedReview(t, db, "g-1", models.StatusPending)
	seedReview(t, db, "g-2", models.StatusPending)
	seedReview(t, db, "g-3", models.StatusCompleted)

	counts, err := claims.StatusCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[string(models.StatusPending)])
	assert.Equal(t, int64(1), counts[string(models.StatusCompleted)])
}

func TestClaimRejectsNonPositiveLimit(t *testing.T) {
	claims := NewClaimService(nil, zap.NewNop(), 50)
	_, err := claims.Claim(context.Background(), 0)
	assert.Error(t, err)
}
