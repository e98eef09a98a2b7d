package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"review-radar/models"
	"review-radar/providers/scrapehub"
)

// NormalizeItem maps one raw dataset item into the canonical review shape.
// Each platform delivers its own field layout, so this is a tagged variant
// with exactly one case per platform. A malformed item returns an error and
// is skipped by the caller; it never aborts the batch.
func NormalizeItem(restaurantID uint, platform string, raw json.RawMessage) (*models.Review, error) {
	switch platform {
	case models.PlatformGoogle:
		return normalizeGoogle(restaurantID, raw)
	case models.PlatformOpenTable:
		return normalizeOpenTable(restaurantID, raw)
	case models.PlatformTripAdvisor:
		return normalizeTripAdvisor(restaurantID, raw)
	default:
		return nil, fmt.Errorf("unknown platform %q", platform)
	}
}

func normalizeGoogle(restaurantID uint, raw json.RawMessage) (*models.Review, error) {
	var item scrapehub.GoogleItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("google item: %w", err)
	}
	if item.ReviewID == "" {
		return nil, fmt.Errorf("google item: missing reviewId")
	}
	if item.Stars < 1 || item.Stars > 5 {
		return nil, fmt.Errorf("google item: stars %d out of range", item.Stars)
	}
	return &models.Review{
		RestaurantID: restaurantID,
		Platform:     models.PlatformGoogle,
		ExternalID:   item.ReviewID,
		Rating:       item.Stars,
		Text:         strings.TrimSpace(item.Text),
		Author:       strings.TrimSpace(item.Name),
		PostedAt:     parseDate(time.RFC3339, item.PublishedAtDate),
	}, nil
}

func normalizeOpenTable(restaurantID uint, raw json.RawMessage) (*models.Review, error) {
	var item scrapehub.OpenTableItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("opentable item: %w", err)
	}
	if item.ID == "" {
		return nil, fmt.Errorf("opentable item: missing id")
	}
	// OpenTable reports fractional ratings; the canonical scale is 1-5 stars.
	rating := int(item.Rating + 0.5)
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("opentable item: rating %.1f out of range", item.Rating)
	}
	return &models.Review{
		RestaurantID: restaurantID,
		Platform:     models.PlatformOpenTable,
		ExternalID:   item.ID,
		Rating:       rating,
		Text:         strings.TrimSpace(item.Review),
		Author:       strings.TrimSpace(item.Author),
		PostedAt:     parseDate("2006-01-02", item.Date),
	}, nil
}

func normalizeTripAdvisor(restaurantID uint, raw json.RawMessage) (*models.Review, error) {
	var item scrapehub.TripAdvisorItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("tripadvisor item: %w", err)
	}
	if item.ReviewID == "" {
		return nil, fmt.Errorf("tripadvisor item: missing id")
	}
	if item.Rating < 1 || item.Rating > 5 {
		return nil, fmt.Errorf("tripadvisor item: rating %d out of range", item.Rating)
	}
	return &models.Review{
		RestaurantID: restaurantID,
		Platform:     models.PlatformTripAdvisor,
		ExternalID:   item.ReviewID,
		Rating:       item.Rating,
		Text:         strings.TrimSpace(item.Text),
		Author:       strings.TrimSpace(item.User.Name),
		PostedAt:     parseDate("2006-01-02", item.PublishedDate),
	}, nil
}

func parseDate(layout, value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return nil
	}
	return &t
}
