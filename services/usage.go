package services

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"review-radar/models"
)

// UsageTracker counts successful extraction calls for billing/quota. It is a
// best-effort boundary: every error is logged and swallowed so a counter
// problem can never fail the analysis outcome.
type UsageTracker struct {
	DB      *gorm.DB
	Logger  *zap.Logger
	counter prometheus.Counter
}

// NewUsageTracker creates a usage tracker backed by a per-day counter row
// and a prometheus counter.
func NewUsageTracker(db *gorm.DB, logger *zap.Logger, counter prometheus.Counter) *UsageTracker {
	return &UsageTracker{DB: db, Logger: logger, counter: counter}
}

// RecordCall increments today's AI-call counter.
func (u *UsageTracker) RecordCall(ctx context.Context) {
	if u.counter != nil {
		u.counter.Inc()
	}
	if u.DB == nil {
		return
	}
	day := time.Now().UTC().Format("2006-01-02")
	err := u.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"calls":      gorm.Expr("ai_usage_counters.calls + 1"),
			"updated_at": gorm.Expr("NOW()"),
		}),
	}).Create(&models.AIUsageCounter{Day: day, Calls: 1}).Error
	if err != nil {
		u.Logger.Warn("AI usage counter update failed", zap.Error(err))
	}
}
