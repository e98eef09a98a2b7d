package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"review-radar/models"
)

// ClaimService hands out bounded batches of pending reviews to exactly one
// caller. Claiming is a single atomic statement: the pending rows are
// selected, locked and flipped to processing in one step, so concurrent
// callers always receive disjoint sets. A read-then-write would race here.
type ClaimService struct {
	DB      *gorm.DB
	Logger  *zap.Logger
	Ceiling int // hard safety cap on one claim, bounds external fan-out
}

// NewClaimService creates a new claim scheduler.
func NewClaimService(db *gorm.DB, logger *zap.Logger, ceiling int) *ClaimService {
	if ceiling <= 0 {
		ceiling = 50
	}
	return &ClaimService{DB: db, Logger: logger, Ceiling: ceiling}
}

// Claim atomically transitions up to limit pending reviews to processing and
// returns the ids this call owns. Returns whatever is available, including
// an empty set, when fewer rows are pending.
func (s *ClaimService) Claim(ctx context.Context, limit int) ([]uint, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("claim limit must be positive, got %d", limit)
	}
	if limit > s.Ceiling {
		limit = s.Ceiling
	}

	var ids []uint
	err := s.DB.WithContext(ctx).Raw(`
		UPDATE reviews
		SET analysis_status = ?, claimed_at = NOW(), updated_at = NOW()
		WHERE id IN (
			SELECT id FROM reviews
			WHERE analysis_status = ?
			ORDER BY ingested_at, id
			LIMIT ?
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id`,
		models.StatusProcessing, models.StatusPending, limit,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		s.Logger.Info("Claimed reviews", zap.Int("count", len(ids)))
	}
	return ids, nil
}

// ResetFilter narrows which failed reviews an operator retry resets.
type ResetFilter struct {
	RestaurantID uint   `json:"restaurant_id"`
	ReviewIDs    []uint `json:"review_ids"`
}

// ResetToPending is the explicit operator retry: failed reviews matching the
// filter go back to pending and become claimable again. Idempotent; rows not
// in failed state are left alone.
func (s *ClaimService) ResetToPending(ctx context.Context, filter ResetFilter) (int64, error) {
	query := s.DB.WithContext(ctx).Model(&models.Review{}).
		Where("analysis_status = ?", models.StatusFailed)
	if filter.RestaurantID != 0 {
		query = query.Where("restaurant_id = ?", filter.RestaurantID)
	}
	if len(filter.ReviewIDs) > 0 {
		query = query.Where("id IN ?", filter.ReviewIDs)
	}

	res := query.Updates(map[string]interface{}{
		"analysis_status": models.StatusPending,
		"failure_reason":  "",
		"claimed_at":      nil,
	})
	if res.Error != nil {
		return 0, res.Error
	}
	s.Logger.Info("Reset failed reviews to pending", zap.Int64("count", res.RowsAffected))
	return res.RowsAffected, nil
}

// ReclaimStuck reverts reviews stuck in processing past the timeout back to
// pending, guarding against workers that crashed after claiming but before
// finalizing. Runs on a cron schedule.
func (s *ClaimService) ReclaimStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res := s.DB.WithContext(ctx).Model(&models.Review{}).
		Where("analysis_status = ? AND claimed_at < ?", models.StatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"analysis_status": models.StatusPending,
			"claimed_at":      nil,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.Logger.Warn("Reclaimed stuck reviews", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}

// PendingCount returns how many reviews are waiting for extraction.
func (s *ClaimService) PendingCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.Review{}).
		Where("analysis_status = ?", models.StatusPending).
		Count(&count).Error
	return count, err
}

// StatusCounts returns the review count per lifecycle state, a cheap
// pipeline-health signal.
func (s *ClaimService) StatusCounts(ctx context.Context) (map[string]int64, error) {
	type row struct {
		AnalysisStatus string
		N              int64
	}
	var rows []row
	err := s.DB.WithContext(ctx).Model(&models.Review{}).
		Select("analysis_status, COUNT(*) AS n").
		Group("analysis_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.AnalysisStatus] = r.N
	}
	return counts, nil
}
