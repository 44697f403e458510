package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meliscout/meli-scraper/internal/models"
)

func TestPublishScrapeCompleted(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	publisher := NewPublisher(client, "", nil)

	items := []models.Item{
		{Title: "Teclado", URL: "https://articulo.mercadolibre.com.co/MCO-1"},
		{Title: "Mouse", URL: "https://articulo.mercadolibre.com.co/MCO-2"},
	}
	require.NoError(t, publisher.PublishScrapeCompleted(context.Background(), "teclado", items))

	entries, err := client.XRange(context.Background(), DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, string(EventTypeScrapeCompleted), entries[0].Values["type"])

	var payload ScrapeCompletedPayload
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["payload"].(string)), &payload))
	assert.Equal(t, "teclado", payload.Query)
	assert.Equal(t, 2, payload.ItemCount)
	assert.NotEmpty(t, payload.EventID)
}

func TestPublishScrapeCompletedConnectionError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	publisher := NewPublisher(client, "custom:stream", nil)
	err := publisher.PublishScrapeCompleted(context.Background(), "teclado", nil)
	assert.Error(t, err)
}
