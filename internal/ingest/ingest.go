// Package ingest forwards scrape results to a remote collection endpoint.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/meliscout/meli-scraper/internal/models"
)

// Payload is the request body sent to the collection endpoint.
type Payload struct {
	Source string        `json:"source"`
	Count  int           `json:"count"`
	Items  []models.Item `json:"items"`
}

// Client pushes result batches to a single configured endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
	logger     *slog.Logger
}

func NewClient(endpoint, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		endpoint:   endpoint,
		token:      token,
		logger:     logger.With("component", "ingest"),
	}
}

// SetHTTPClient swaps the underlying HTTP client. Tests use this to install
// a mock transport.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// Push sends items under the given source label. A non-2xx response is an
// error; the endpoint's body is included for diagnosis.
func (c *Client) Push(ctx context.Context, items []models.Item, source string) error {
	if c.endpoint == "" {
		return fmt.Errorf("ingest endpoint not configured")
	}
	if items == nil {
		items = []models.Item{}
	}

	body, err := json.Marshal(Payload{Source: source, Count: len(items), Items: items})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push to %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, detail)
	}

	c.logger.Info("results pushed", "source", source, "items", len(items))
	return nil
}
