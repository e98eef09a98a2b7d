package providers

import (
	"context"
	"encoding/json"
)

// DatasetSource is the read-only interface to the scrape-result store that
// delivered the ingestion notification. Items come back raw; the normalizer
// maps them into the canonical review shape per platform.
type DatasetSource interface {
	// FetchItems returns all items of a dataset by its handle.
	FetchItems(ctx context.Context, handle string) ([]json.RawMessage, error)

	// ItemCount returns the item count the provider reports for the dataset.
	ItemCount(ctx context.Context, handle string) (int, error)

	// Name returns the unique provider name (e.g. "scrapehub").
	Name() string
}
