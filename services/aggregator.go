package services

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"review-radar/models"
)

// ComputeFlavorIndex turns a star distribution into the bounded Flavor Index
// score. dist[0] holds the 1-star count through dist[4] for 5-star. The
// share of 5-star reviews rewards, the share of 1-3 stars penalizes; 4-star
// reviews are on the fence and count toward neither term. Returns 0 for an
// empty window.
func ComputeFlavorIndex(dist [5]int64) float64 {
	var total int64
	for _, n := range dist {
		total += n
	}
	if total == 0 {
		return 0
	}
	promoters := float64(dist[4]) / float64(total) * 100
	detractors := float64(dist[0]+dist[1]+dist[2]) / float64(total) * 100
	score := promoters - detractors
	if score > 100 {
		score = 100
	}
	if score < -100 {
		score = -100
	}
	return round2(score)
}

// ZoneFor classifies a (clamped) score into its named bucket.
func ZoneFor(score float64) string {
	switch {
	case score >= 71:
		return models.ZoneWorldClass
	case score >= 51:
		return models.ZoneExcellent
	case score >= 31:
		return models.ZoneGreat
	case score >= 0:
		return models.ZoneGood
	default:
		return models.ZoneNeedsImprovement
	}
}

// RankAmong returns the purely count-based local rank: 1 plus the number of
// competitors with a strictly higher score. Equal scores share the lower
// rank number.
func RankAmong(score float64, competitorScores []float64) int {
	rank := 1
	for _, s := range competitorScores {
		if s > score {
			rank++
		}
	}
	return rank
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// AggregationService computes Flavor Index snapshots. It is strictly
// read-only over reviews and analyses; recomputation is always safe.
type AggregationService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewAggregationService creates a new aggregation engine.
func NewAggregationService(db *gorm.DB, logger *zap.Logger) *AggregationService {
	return &AggregationService{DB: db, Logger: logger}
}

// ComputeSnapshot builds the snapshot for one restaurant and period and
// replaces the cached row wholesale.
func (s *AggregationService) ComputeSnapshot(ctx context.Context, restaurantID uint, periodStart, periodEnd time.Time) (*models.FlavorIndexSnapshot, error) {
	dist, total, avgRating, err := s.starDistribution(ctx, restaurantID, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	score := ComputeFlavorIndex(dist)

	delta, err := s.computeDelta(ctx, restaurantID, periodStart, periodEnd, score)
	if err != nil {
		return nil, err
	}

	analyses, err := s.analysesInWindow(ctx, restaurantID, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	categoryStats := buildCategoryStats(analyses)
	staffBoard, itemBoard := buildLeaderboards(analyses)

	snapshot := &models.FlavorIndexSnapshot{
		RestaurantID:     restaurantID,
		PeriodStart:      periodStart,
		PeriodEnd:        periodEnd,
		Score:            score,
		Zone:             ZoneFor(score),
		Delta:            delta,
		AvgRating:        avgRating,
		TotalReviews:     total,
		StarDistribution: mustJSON(dist),
		CategoryStats:    mustJSON(categoryStats),
		StaffLeaderboard: mustJSON(staffBoard),
		ItemMentions:     mustJSON(itemBoard),
	}

	// Cache, replaced wholesale; never mutated in place.
	err = s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "restaurant_id"}, {Name: "period_start"}, {Name: "period_end"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"score", "zone", "delta", "avg_rating", "total_reviews",
			"star_distribution", "category_stats", "staff_leaderboard",
			"item_mentions", "updated_at",
		}),
	}).Create(snapshot).Error
	if err != nil {
		// The snapshot itself is still valid; caching is not load-bearing.
		s.Logger.Warn("Snapshot cache write failed", zap.Error(err))
	}
	return snapshot, nil
}

// ComputeCompetitorSnapshots computes snapshots for a competitor set over
// the same period.
func (s *AggregationService) ComputeCompetitorSnapshots(ctx context.Context, restaurantIDs []uint, periodStart, periodEnd time.Time) ([]*models.FlavorIndexSnapshot, error) {
	snapshots := make([]*models.FlavorIndexSnapshot, 0, len(restaurantIDs))
	for _, id := range restaurantIDs {
		snap, err := s.ComputeSnapshot(ctx, id, periodStart, periodEnd)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

func (s *AggregationService) starDistribution(ctx context.Context, restaurantID uint, start, end time.Time) ([5]int64, int64, float64, error) {
	type row struct {
		Rating int
		N      int64
	}
	var rows []row
	err := s.DB.WithContext(ctx).Model(&models.Review{}).
		Select("rating, COUNT(*) AS n").
		Where("restaurant_id = ? AND posted_at >= ? AND posted_at <= ?", restaurantID, start, end).
		Group("rating").
		Scan(&rows).Error
	if err != nil {
		return [5]int64{}, 0, 0, err
	}

	var dist [5]int64
	var total, ratingSum int64
	for _, r := range rows {
		if r.Rating < 1 || r.Rating > 5 {
			continue
		}
		dist[r.Rating-1] = r.N
		total += r.N
		ratingSum += int64(r.Rating) * r.N
	}
	avg := 0.0
	if total > 0 {
		avg = round2(float64(ratingSum) / float64(total))
	}
	return dist, total, avg, nil
}

// computeDelta compares against the immediately preceding period of
// identical duration; nil when that period has no reviews.
func (s *AggregationService) computeDelta(ctx context.Context, restaurantID uint, start, end time.Time, score float64) (*float64, error) {
	duration := end.Sub(start)
	prevEnd := start.AddDate(0, 0, -1)
	prevStart := prevEnd.Add(-duration)

	dist, total, _, err := s.starDistribution(ctx, restaurantID, prevStart, prevEnd)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}
	delta := round2(score - ComputeFlavorIndex(dist))
	return &delta, nil
}

func (s *AggregationService) analysesInWindow(ctx context.Context, restaurantID uint, start, end time.Time) ([]models.Analysis, error) {
	var analyses []models.Analysis
	err := s.DB.WithContext(ctx).Model(&models.Analysis{}).
		Joins("JOIN reviews ON reviews.id = analyses.review_id").
		Where("reviews.restaurant_id = ? AND reviews.posted_at >= ? AND reviews.posted_at <= ?", restaurantID, start, end).
		Find(&analyses).Error
	return analyses, err
}

var categoryOrder = []string{"food", "service", "ambience", "value"}

func categoryScore(a *models.Analysis, category string) *float64 {
	switch category {
	case "food":
		return a.FoodScore
	case "service":
		return a.ServiceScore
	case "ambience":
		return a.AmbienceScore
	case "value":
		return a.ValueScore
	}
	return nil
}

// buildCategoryStats computes per-category mean sentiment and each
// category's share of total mention volume. Shares sum to 100 across the
// four categories (within rounding).
func buildCategoryStats(analyses []models.Analysis) []models.CategoryStat {
	sums := make(map[string]float64, 4)
	counts := make(map[string]int, 4)
	totalMentions := 0

	for i := range analyses {
		for _, cat := range categoryOrder {
			if score := categoryScore(&analyses[i], cat); score != nil {
				sums[cat] += *score
				counts[cat]++
				totalMentions++
			}
		}
	}

	stats := make([]models.CategoryStat, 0, len(categoryOrder))
	for _, cat := range categoryOrder {
		stat := models.CategoryStat{Category: cat, Mentions: counts[cat]}
		if counts[cat] > 0 {
			stat.MeanScore = round2(sums[cat] / float64(counts[cat]))
		}
		if totalMentions > 0 {
			stat.VolumeShare = round2(float64(counts[cat]) / float64(totalMentions) * 100)
		}
		stats = append(stats, stat)
	}
	return stats
}

type mentionTally struct {
	name     string // first-seen spelling, for display
	role     string
	total    int
	positive int
}

// buildLeaderboards groups staff and item mentions by normalized name and
// ranks them by mention count, ties broken by positive share.
func buildLeaderboards(analyses []models.Analysis) ([]models.LeaderboardEntry, []models.LeaderboardEntry) {
	staff := make(map[string]*mentionTally)
	items := make(map[string]*mentionTally)

	for i := range analyses {
		var staffMentions []models.StaffMention
		if len(analyses[i].StaffMentioned) > 0 {
			_ = json.Unmarshal(analyses[i].StaffMentioned, &staffMentions)
		}
		for _, m := range staffMentions {
			tally := upsertTally(staff, m.Name)
			if tally == nil {
				continue
			}
			if tally.role == "" {
				tally.role = m.Role
			}
			tally.total++
			if m.Sentiment == models.SentimentPositive {
				tally.positive++
			}
		}

		var itemMentions []models.ItemMention
		if len(analyses[i].ItemsMentioned) > 0 {
			_ = json.Unmarshal(analyses[i].ItemsMentioned, &itemMentions)
		}
		for _, m := range itemMentions {
			tally := upsertTally(items, m.Name)
			if tally == nil {
				continue
			}
			tally.total++
			if m.Polarity == models.SentimentPositive {
				tally.positive++
			}
		}
	}

	return rankTallies(staff), rankTallies(items)
}

func upsertTally(tallies map[string]*mentionTally, rawName string) *mentionTally {
	key := normalizeName(rawName)
	if key == "" {
		return nil
	}
	if t, ok := tallies[key]; ok {
		return t
	}
	t := &mentionTally{name: strings.TrimSpace(rawName)}
	tallies[key] = t
	return t
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func rankTallies(tallies map[string]*mentionTally) []models.LeaderboardEntry {
	entries := make([]models.LeaderboardEntry, 0, len(tallies))
	for _, t := range tallies {
		entries = append(entries, models.LeaderboardEntry{
			Name:            t.name,
			Role:            t.role,
			Mentions:        t.total,
			PositivePercent: round2(float64(t.positive) / float64(t.total) * 100),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Mentions != entries[j].Mentions {
			return entries[i].Mentions > entries[j].Mentions
		}
		if entries[i].PositivePercent != entries[j].PositivePercent {
			return entries[i].PositivePercent > entries[j].PositivePercent
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}
