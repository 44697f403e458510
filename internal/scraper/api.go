package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/meliscout/meli-scraper/internal/fetch"
	"github.com/meliscout/meli-scraper/internal/models"
)

const defaultAPILimit = 50

// APIClient queries the marketplace's public search endpoint, the terminal
// fallback when DOM extraction fails entirely. Rating fields are not
// available from this source and stay nil.
type APIClient struct {
	fetcher *fetch.Client
	limit   int
	logger  *slog.Logger
}

func NewAPIClient(fetcher *fetch.Client) *APIClient {
	return &APIClient{
		fetcher: fetcher,
		limit:   defaultAPILimit,
		logger:  slog.Default().With("component", "meli_api"),
	}
}

type apiSearchResponse struct {
	Results []struct {
		Title     string   `json:"title"`
		Permalink string   `json:"permalink"`
		Price     *float64 `json:"price"`
		Thumbnail string   `json:"thumbnail"`
	} `json:"results"`
}

// SearchItems maps the API's JSON result schema to partial item records.
// Any failure yields an empty slice; the candidate is then abandoned.
func (c *APIClient) SearchItems(ctx context.Context, query string) []models.RawItem {
	endpoint := fmt.Sprintf("https://api.mercadolibre.com/sites/MCO/search?q=%s&limit=%d",
		url.QueryEscape(query), c.limit)

	res, err := c.fetcher.GetJSON(ctx, endpoint)
	if err != nil {
		c.logger.Debug("api search failed", "query", query, "error", err)
		return nil
	}

	var payload apiSearchResponse
	if err := json.Unmarshal([]byte(res.Body), &payload); err != nil {
		c.logger.Debug("api search returned malformed json", "query", query, "error", err)
		return nil
	}

	var items []models.RawItem
	for _, r := range payload.Results {
		if r.Title == "" || r.Permalink == "" {
			continue
		}
		item := models.RawItem{
			Title: r.Title,
			URL:   r.Permalink,
			Price: r.Price,
		}
		if r.Thumbnail != "" {
			item.Image = models.String(r.Thumbnail)
		}
		items = append(items, item)
	}
	return items
}
