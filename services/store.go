package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"review-radar/models"
)

// ReviewStore is the gorm-backed finalization side of the review lifecycle.
// All status flips are guarded conditional updates: a flip whose precondition
// no longer holds affects zero rows and surfaces ErrInvalidStateTransition
// instead of silently overwriting a terminal state.
type ReviewStore struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewReviewStore creates a new review store.
func NewReviewStore(db *gorm.DB, logger *zap.Logger) *ReviewStore {
	return &ReviewStore{DB: db, Logger: logger}
}

// GetClaimed loads the reviews of a claimed batch. Only rows still in
// processing are returned; anything else was reclaimed or finalized by
// someone with better information.
func (s *ReviewStore) GetClaimed(ctx context.Context, ids []uint) ([]models.Review, error) {
	var reviews []models.Review
	err := s.DB.WithContext(ctx).
		Where("id IN ? AND analysis_status = ?", ids, models.StatusProcessing).
		Find(&reviews).Error
	return reviews, err
}

// Complete writes the analysis row and flips the review to completed in one
// transaction. Both happen or neither: a completed review without an
// analysis row is an inconsistency this store must never produce.
func (s *ReviewStore) Complete(ctx context.Context, reviewID uint, analysis *models.Analysis) error {
	analysis.ReviewID = reviewID
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(analysis).Error; err != nil {
			return fmt.Errorf("analysis insert: %w", err)
		}
		res := tx.Model(&models.Review{}).
			Where("id = ? AND analysis_status = ?", reviewID, models.StatusProcessing).
			Updates(map[string]interface{}{
				"analysis_status": models.StatusCompleted,
				"failure_reason":  "",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return transitionError(tx, reviewID, models.StatusCompleted)
		}
		return nil
	})
}

// Fail marks one review failed and records the cause for operator
// diagnosis. No inline retry: reprocessing is an explicit reset to pending.
func (s *ReviewStore) Fail(ctx context.Context, reviewID uint, reason string) error {
	res := s.DB.WithContext(ctx).Model(&models.Review{}).
		Where("id = ? AND analysis_status = ?", reviewID, models.StatusProcessing).
		Updates(map[string]interface{}{
			"analysis_status": models.StatusFailed,
			"failure_reason":  reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return transitionError(s.DB.WithContext(ctx), reviewID, models.StatusFailed)
	}
	return nil
}

// transitionError explains why a guarded status flip matched no row: the
// review is gone, its current state forbids the move, or it lost a race.
func transitionError(db *gorm.DB, reviewID uint, target models.AnalysisStatus) error {
	var review models.Review
	if err := db.Select("analysis_status").First(&review, reviewID).Error; err != nil {
		return fmt.Errorf("%w: review %d not found", models.ErrInvalidStateTransition, reviewID)
	}
	if !review.AnalysisStatus.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidStateTransition, review.AnalysisStatus, target)
	}
	return models.ErrInvalidStateTransition
}
