package scrapehub

// datasetMeta is the provider's dataset metadata envelope.
type datasetMeta struct {
	Data struct {
		ID        string `json:"id"`
		ItemCount int    `json:"itemCount"`
		Status    string `json:"status"`
	} `json:"data"`
}

// GoogleItem is the raw shape of one Google review as delivered by the
// scrape provider.
type GoogleItem struct {
	ReviewID        string `json:"reviewId"`
	Stars           int    `json:"stars"`
	Text            string `json:"text"`
	Name            string `json:"name"`
	PublishedAtDate string `json:"publishedAtDate"` // RFC3339
}

// OpenTableItem is the raw shape of one OpenTable review.
type OpenTableItem struct {
	ID     string  `json:"id"`
	Rating float64 `json:"rating"`
	Review string  `json:"review"`
	Author string  `json:"author"`
	Date   string  `json:"date"` // YYYY-MM-DD
}

// TripAdvisorItem is the raw shape of one TripAdvisor review.
type TripAdvisorItem struct {
	ReviewID      string `json:"id"`
	Rating        int    `json:"rating"`
	Text          string `json:"text"`
	PublishedDate string `json:"publishedDate"` // YYYY-MM-DD
	User          struct {
		Name string `json:"name"`
	} `json:"user"`
}
