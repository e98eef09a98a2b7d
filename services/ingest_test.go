package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"review-radar/config"
	"review-radar/models"
)

type fakeSource struct {
	items    []json.RawMessage
	fetchErr error
	count    int
	countErr error
}

func (f *fakeSource) FetchItems(ctx context.Context, handle string) ([]json.RawMessage, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.items, nil
}

func (f *fakeSource) ItemCount(ctx context.Context, handle string) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.count, nil
}

func (f *fakeSource) Name() string { return "fake" }

func googleItem(id string, stars int, text string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"reviewId":%q,"stars":%d,"text":%q,"name":"A."}`, id, stars, text))
}

func newTestIngest(db *gorm.DB, source *fakeSource) *IngestService {
	return NewIngestService(&config.Config{}, db, nil, source, zap.NewNop())
}

func googleNotification() Notification {
	n := Notification{RunID: "run-1", DatasetHandle: "ds-1", Status: "succeeded"}
	n.Meta.RestaurantID = 1
	n.Meta.Platform = models.PlatformGoogle
	return n
}

func TestHandleNotificationIdempotentReplay(t *testing.T) {
	db := newTestDB(t)
	source := &fakeSource{
		items: []json.RawMessage{
			googleItem("g-1", 5, "fantastic"),
			googleItem("g-2", 3, "fine"),
		},
		count: 2,
	}
	ingest := newTestIngest(db, source)

	counts, err := ingest.HandleNotification(context.Background(), googleNotification())
	require.NoError(t, err)
	assert.Equal(t, IngestCounts{Inserted: 2}, counts)

	var reviews []models.Review
	require.NoError(t, db.Order("external_id").Find(&reviews).Error)
	require.Len(t, reviews, 2)
	assert.Equal(t, models.StatusPending, reviews[0].AnalysisStatus)

	// One review finishes the pipeline before the webhook is redelivered.
	require.NoError(t, db.Model(&models.Review{}).
		Where("external_id = ?", "g-1").
		Update("analysis_status", models.StatusCompleted).Error)

	counts, err = ingest.HandleNotification(context.Background(), googleNotification())
	require.NoError(t, err)
	assert.Equal(t, IngestCounts{Duplicate: 2}, counts)

	// Replay duplicated no rows and never touched the pipeline state.
	var total int64
	require.NoError(t, db.Model(&models.Review{}).Count(&total).Error)
	assert.Equal(t, int64(2), total)

	var done models.Review
	require.NoError(t, db.Where("external_id = ?", "g-1").First(&done).Error)
	assert.Equal(t, models.StatusCompleted, done.AnalysisStatus)

	var runs []models.ScrapeRun
	require.NoError(t, db.Order("id").Find(&runs).Error)
	require.Len(t, runs, 2)
	assert.Equal(t, "succeeded", runs[0].Status)
	assert.Equal(t, 0, runs[1].ReviewsNew)
}

func TestHandleNotificationRefreshesChangedReviews(t *testing.T) {
	db := newTestDB(t)
	source := &fakeSource{
		items: []json.RawMessage{googleItem("g-1", 5, "fantastic"), googleItem("g-2", 3, "fine")},
		count: 2,
	}
	ingest := newTestIngest(db, source)

	_, err := ingest.HandleNotification(context.Background(), googleNotification())
	require.NoError(t, err)

	// The author edited one review upstream.
	source.items = []json.RawMessage{googleItem("g-1", 5, "fantastic, edited"), googleItem("g-2", 3, "fine")}

	counts, err := ingest.HandleNotification(context.Background(), googleNotification())
	require.NoError(t, err)
	assert.Equal(t, IngestCounts{Duplicate: 1, Updated: 1}, counts)

	var edited models.Review
	require.NoError(t, db.Where("external_id = ?", "g-1").First(&edited).Error)
	assert.Equal(t, "fantastic, edited", edited.Text)
	assert.Equal(t, models.StatusPending, edited.AnalysisStatus)
}

func TestHandleNotificationSkipsMalformedItems(t *testing.T) {
	db := newTestDB(t)
	source := &fakeSource{
		items: []json.RawMessage{
			googleItem("g-1", 4, "good"),
			googleItem("g-bad", 9, "out of range"),
		},
		count: 2,
	}
	ingest := newTestIngest(db, source)

	counts, err := ingest.HandleNotification(context.Background(), googleNotification())
	require.NoError(t, err)
	assert.Equal(t, IngestCounts{Inserted: 1, Errors: 1}, counts)
}

func TestHandleNotificationRecordsRejectedRun(t *testing.T) {
	db := newTestDB(t)
	ingest := newTestIngest(db, &fakeSource{})

	n := googleNotification()
	n.Meta.Platform = "yelp"

	_, err := ingest.HandleNotification(context.Background(), n)
	require.Error(t, err)

	// The rejection still leaves an audit row.
	var run models.ScrapeRun
	require.NoError(t, db.First(&run).Error)
	assert.Equal(t, "rejected", run.Status)
	assert.Equal(t, 0, run.ReviewsFound)
}

func TestHandleNotificationRecordsFetchFailure(t *testing.T) {
	db := newTestDB(t)
	ingest := newTestIngest(db, &fakeSource{fetchErr: errors.New("store unreachable")})

	_, err := ingest.HandleNotification(context.Background(), googleNotification())
	require.Error(t, err)

	var run models.ScrapeRun
	require.NoError(t, db.First(&run).Error)
	assert.Equal(t, "fetch_failed", run.Status)
}

func TestHandleNotificationCountCheckIsBestEffort(t *testing.T) {
	db := newTestDB(t)
	source := &fakeSource{
		items:    []json.RawMessage{googleItem("g-1", 4, "good")},
		countErr: errors.New("metadata unavailable"),
	}
	ingest := newTestIngest(db, source)

	counts, err := ingest.HandleNotification(context.Background(), googleNotification())
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Inserted)
}
