package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewItemDetailPrecedence(t *testing.T) {
	raw := RawItem{
		Title:       "Teclado",
		URL:         "https://articulo.mercadolibre.com.co/MCO-1",
		Price:       Float(100000),
		Rating:      Float(4.0),
		RatingCount: Int(10),
	}
	detail := &DetailFields{
		Description: String("Mecánico"),
		Sold:        Int(500),
		Rating:      Float(4.8),
		RatingCount: Int(230),
		Reviews:     []Review{{Content: String("bien")}},
	}

	item := NewItem(raw, detail)

	assert.Equal(t, "Teclado", item.Title)
	require.NotNil(t, item.Rating)
	assert.InDelta(t, 4.8, *item.Rating, 0.001)
	require.NotNil(t, item.RatingCount)
	assert.Equal(t, 230, *item.RatingCount)
	require.NotNil(t, item.Description)
	assert.Equal(t, "Mecánico", *item.Description)
	require.NotNil(t, item.Sold)
	assert.Equal(t, 500, *item.Sold)
	assert.Len(t, item.Reviews, 1)
}

func TestNewItemKeepsListingValuesWithoutDetail(t *testing.T) {
	raw := RawItem{
		Title:  "Mouse",
		URL:    "https://articulo.mercadolibre.com.co/MCO-2",
		Rating: Float(4.2),
	}

	item := NewItem(raw, nil)

	require.NotNil(t, item.Rating)
	assert.InDelta(t, 4.2, *item.Rating, 0.001)
	assert.Nil(t, item.Description)
	assert.NotNil(t, item.Reviews)
	assert.Empty(t, item.Reviews)
}

func TestNewItemEmptyDetailKeepsListingRating(t *testing.T) {
	raw := RawItem{Title: "Pad", Rating: Float(3.9), RatingCount: Int(7)}

	item := NewItem(raw, &DetailFields{})

	require.NotNil(t, item.Rating)
	assert.InDelta(t, 3.9, *item.Rating, 0.001)
	require.NotNil(t, item.RatingCount)
	assert.Equal(t, 7, *item.RatingCount)
}

func TestItemJSONShape(t *testing.T) {
	item := NewItem(RawItem{Title: "Teclado", URL: "u", DiscountPrice: Float(99)}, nil)

	data, err := json.Marshal(item)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "discount_price")
	assert.Contains(t, decoded, "rating_count")
	assert.Equal(t, []any{}, decoded["reviews"])
}
