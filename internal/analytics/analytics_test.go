package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meliscout/meli-scraper/internal/models"
)

func TestBuildReport(t *testing.T) {
	items := []models.Item{
		{
			Title:         "Teclado",
			URL:           "u1",
			Price:         models.Float(100000),
			DiscountPrice: models.Float(120000),
			Rating:        models.Float(4.8),
			RatingCount:   models.Int(300),
		},
		{
			Title:       "Mouse",
			URL:         "u2",
			Price:       models.Float(50000),
			Rating:      models.Float(3.2),
			RatingCount: models.Int(40),
		},
		{
			Title: "Pad sin datos",
			URL:   "u3",
		},
	}

	report := Build(items)

	assert.Equal(t, 3, report.ItemCount)
	assert.Equal(t, 2, report.PricedCount)
	assert.InDelta(t, 50000, report.PriceMin, 0.001)
	assert.InDelta(t, 100000, report.PriceMax, 0.001)
	assert.InDelta(t, 75000, report.PriceAvg, 0.001)
	assert.InDelta(t, 1.0/3.0, report.DiscountShare, 0.001)
	assert.InDelta(t, 4.0, report.RatingAvg, 0.001)

	assert.Equal(t, 1, report.RatingHistogram[5])
	assert.Equal(t, 1, report.RatingHistogram[3])

	require.Len(t, report.TopRated, 2)
	assert.Equal(t, "Teclado", report.TopRated[0].Title)
	require.Len(t, report.MostReviewed, 2)
	assert.Equal(t, "Teclado", report.MostReviewed[0].Title)
	assert.InDelta(t, 300, report.MostReviewed[0].Value, 0.001)
}

func TestBuildReportEmpty(t *testing.T) {
	report := Build(nil)

	assert.Equal(t, 0, report.ItemCount)
	assert.InDelta(t, 0, report.PriceMin, 0.001)
	assert.InDelta(t, 0, report.PriceAvg, 0.001)
	assert.Empty(t, report.TopRated)
	assert.Empty(t, report.MostReviewed)
}

func TestBuildReportRanksAreCapped(t *testing.T) {
	var items []models.Item
	for i := 0; i < 10; i++ {
		items = append(items, models.Item{
			Title:  "item",
			Rating: models.Float(float64(i%5) + 0.5),
		})
	}

	report := Build(items)
	assert.Len(t, report.TopRated, rankedListSize)
}
