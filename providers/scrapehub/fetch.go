package scrapehub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"review-radar/config"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Client implements the providers.DatasetSource interface for the scrape
// provider's result store.
type Client struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewClient creates a new scrape-result store client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{Config: cfg, Logger: logger}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "scrapehub"
}

// FetchItems downloads all items of a dataset by handle.
func (c *Client) FetchItems(ctx context.Context, handle string) ([]json.RawMessage, error) {
	itemsURL := fmt.Sprintf("%s/datasets/%s/items?format=json&token=%s",
		c.Config.ScrapeHubBaseURL, url.PathEscape(handle), url.QueryEscape(c.Config.ScrapeHubToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, itemsURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dataset items fetch failed: %s", resp.Status)
	}

	var items []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, err
	}

	c.Logger.Info("Fetched dataset items",
		zap.String("handle", handle),
		zap.Int("count", len(items)))
	return items, nil
}

// ItemCount reads the item count from the dataset metadata.
func (c *Client) ItemCount(ctx context.Context, handle string) (int, error) {
	metaURL := fmt.Sprintf("%s/datasets/%s?token=%s",
		c.Config.ScrapeHubBaseURL, url.PathEscape(handle), url.QueryEscape(c.Config.ScrapeHubToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metaURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("dataset metadata fetch failed: %s", resp.Status)
	}

	var meta datasetMeta
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return 0, err
	}
	return meta.Data.ItemCount, nil
}
