// Package events announces finished scrape runs on a Redis stream so
// downstream consumers (analytics, alerting) can react without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/meliscout/meli-scraper/internal/models"
)

const DefaultStream = "meli:scrape:completed"

// EventType identifies what happened.
type EventType string

const (
	// EventTypeScrapeCompleted is published after a run finished, whether
	// or not it found items.
	EventTypeScrapeCompleted EventType = "SCRAPE_COMPLETED"
)

// ScrapeCompletedPayload describes one finished run.
type ScrapeCompletedPayload struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Query     string    `json:"query"`
	ItemCount int       `json:"item_count"`
}

// Publisher writes run events to a Redis stream.
type Publisher struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewPublisher(client *redis.Client, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client: client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishScrapeCompleted announces a finished run for query with its items.
func (p *Publisher) PublishScrapeCompleted(ctx context.Context, query string, items []models.Item) error {
	payload := ScrapeCompletedPayload{
		EventID:   uuid.New().String(),
		EventType: string(EventTypeScrapeCompleted),
		Timestamp: time.Now().UTC(),
		Source:    "scraper",
		Query:     query,
		ItemCount: len(items),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"type":    payload.EventType,
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to stream %s: %w", p.stream, err)
	}

	p.logger.Info("event published",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"stream", p.stream,
		"stream_id", id,
		"items", payload.ItemCount,
	)
	return nil
}
