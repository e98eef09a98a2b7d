package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"review-radar/config"
	"review-radar/models"
	"review-radar/providers"
	"review-radar/storage"
)

// Notification is the inbound batch-completion event from the scrape
// provider. Delivery is at-least-once, so handling must be idempotent.
type Notification struct {
	Event         string `json:"event"`
	RunID         string `json:"runId"`
	DatasetHandle string `json:"datasetHandle" binding:"required"`
	Status        string `json:"status"`
	Meta          struct {
		RestaurantID uint   `json:"restaurantId" binding:"required"`
		Platform     string `json:"platform" binding:"required"`
		TenantID     string `json:"tenantId"`
	} `json:"meta"`
}

// IngestCounts summarizes one ingested batch.
type IngestCounts struct {
	Inserted  int `json:"inserted"`
	Duplicate int `json:"duplicate"`
	Updated   int `json:"updated"`
	Errors    int `json:"errors"`
}

// IngestService turns scrape-provider datasets into review rows. The upsert
// is keyed on (restaurant_id, platform, external_id) and never touches
// analysis_status, so webhook replays are side-effect-idempotent on the
// pipeline.
type IngestService struct {
	Config   *config.Config
	DB       *gorm.DB
	S3Client *s3.Client
	Source   providers.DatasetSource
	Logger   *zap.Logger
}

// NewIngestService creates a new ingestion gateway service.
func NewIngestService(cfg *config.Config, db *gorm.DB, s3Client *s3.Client, source providers.DatasetSource, logger *zap.Logger) *IngestService {
	return &IngestService{Config: cfg, DB: db, S3Client: s3Client, Source: source, Logger: logger}
}

// HandleNotification fetches the dataset behind a completed scrape job,
// normalizes the items and upserts them. One ScrapeRun row is recorded per
// notification regardless of per-item outcome.
func (s *IngestService) HandleNotification(ctx context.Context, n Notification) (IngestCounts, error) {
	log := s.Logger.With(
		zap.String("run_id", n.RunID),
		zap.Uint("restaurant_id", n.Meta.RestaurantID),
		zap.String("platform", n.Meta.Platform))

	counts := IngestCounts{}
	if !models.KnownPlatform(n.Meta.Platform) {
		s.recordRun(n, 0, counts, "rejected", "")
		return counts, fmt.Errorf("unknown platform %q", n.Meta.Platform)
	}

	items, err := s.Source.FetchItems(ctx, n.DatasetHandle)
	if err != nil {
		log.Error("Dataset fetch failed", zap.Error(err))
		s.recordRun(n, 0, counts, "fetch_failed", "")
		return counts, err
	}

	// Cross-check against the provider's own count; a mismatch means a
	// truncated download or a dataset still being written.
	if reported, err := s.Source.ItemCount(ctx, n.DatasetHandle); err == nil && reported != len(items) {
		log.Warn("Dataset item count mismatch",
			zap.Int("reported", reported), zap.Int("fetched", len(items)))
	}

	// Normalize; malformed items are counted and skipped, never fatal.
	// In-batch duplicates (same external id) collapse to the last occurrence.
	byExternalID := make(map[string]*models.Review)
	for _, raw := range items {
		review, err := NormalizeItem(n.Meta.RestaurantID, n.Meta.Platform, raw)
		if err != nil {
			counts.Errors++
			log.Warn("Skipping malformed item", zap.Error(err))
			continue
		}
		byExternalID[review.ExternalID] = review
	}

	externalIDs := make([]string, 0, len(byExternalID))
	for id := range byExternalID {
		externalIDs = append(externalIDs, id)
	}

	// Classify against existing rows first so the response can report
	// inserted/duplicate/updated; the upsert below is what guarantees
	// idempotency, not this read.
	var existing []models.Review
	if len(externalIDs) > 0 {
		if err := s.DB.WithContext(ctx).
			Where("restaurant_id = ? AND platform = ? AND external_id IN ?",
				n.Meta.RestaurantID, n.Meta.Platform, externalIDs).
			Find(&existing).Error; err != nil {
			s.recordRun(n, len(items), counts, "db_failed", "")
			return counts, err
		}
	}
	existingByID := make(map[string]models.Review, len(existing))
	for _, r := range existing {
		existingByID[r.ExternalID] = r
	}

	now := time.Now().UTC()
	rows := make([]models.Review, 0, len(byExternalID))
	for id, review := range byExternalID {
		if prev, ok := existingByID[id]; ok {
			if prev.Text == review.Text && prev.Author == review.Author && prev.Rating == review.Rating {
				counts.Duplicate++
			} else {
				counts.Updated++
			}
		} else {
			counts.Inserted++
		}
		review.IngestedAt = now
		review.AnalysisStatus = models.StatusPending
		rows = append(rows, *review)
	}

	if len(rows) > 0 {
		// Existing rows get their mutable fields refreshed; analysis_status,
		// ingested_at and claim bookkeeping stay untouched.
		if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "restaurant_id"}, {Name: "platform"}, {Name: "external_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"rating", "text", "author", "posted_at", "updated_at"}),
		}).CreateInBatches(rows, 100).Error; err != nil {
			s.recordRun(n, len(items), counts, "db_failed", "")
			return counts, err
		}
	}

	archiveLink := s.archivePayload(n, items)
	s.recordRun(n, len(items), counts, "succeeded", archiveLink)

	log.Info("Ingestion batch completed",
		zap.Int("inserted", counts.Inserted),
		zap.Int("duplicate", counts.Duplicate),
		zap.Int("updated", counts.Updated),
		zap.Int("errors", counts.Errors))
	return counts, nil
}

// archivePayload stores the raw items in S3 for audit. Best effort: failures
// are logged and never fail the ingest.
func (s *IngestService) archivePayload(n Notification, items []json.RawMessage) string {
	if s.S3Client == nil {
		return ""
	}
	data, err := json.Marshal(items)
	if err != nil {
		s.Logger.Warn("Payload archive marshal failed", zap.Error(err))
		return ""
	}
	key := fmt.Sprintf("scrape-runs/%s/%s.json", n.Meta.Platform, n.RunID)
	link, err := storage.ArchivePayload(s.S3Client, s.Config.ArchiveS3Bucket, key, data, s.Config)
	if err != nil {
		s.Logger.Warn("Payload archive upload failed", zap.Error(err), zap.String("key", key))
		return ""
	}
	return link
}

func (s *IngestService) recordRun(n Notification, found int, counts IngestCounts, status, archiveLink string) {
	run := models.ScrapeRun{
		RunID:        n.RunID,
		RestaurantID: n.Meta.RestaurantID,
		Platform:     n.Meta.Platform,
		TenantID:     n.Meta.TenantID,
		Status:       status,
		ReviewsFound: found,
		ReviewsNew:   counts.Inserted,
		Errors:       counts.Errors,
		ArchiveLink:  archiveLink,
	}
	if err := s.DB.Create(&run).Error; err != nil {
		s.Logger.Warn("Failed to record scrape run", zap.Error(err), zap.String("run_id", n.RunID))
	}
}
