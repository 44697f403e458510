// Package analytics summarizes a scrape run into an aggregate report.
package analytics

import (
	"math"
	"sort"

	"github.com/meliscout/meli-scraper/internal/models"
)

// Report aggregates the priced, rated and reviewed items of one run.
type Report struct {
	ItemCount     int     `json:"item_count"`
	PricedCount   int     `json:"priced_count"`
	PriceMin      float64 `json:"price_min"`
	PriceMax      float64 `json:"price_max"`
	PriceAvg      float64 `json:"price_avg"`
	DiscountShare float64 `json:"discount_share"`
	RatingAvg     float64 `json:"rating_avg"`

	RatingHistogram map[int]int `json:"rating_histogram"`

	TopRated     []Entry `json:"top_rated"`
	MostReviewed []Entry `json:"most_reviewed"`
}

// Entry names one item in a ranked list.
type Entry struct {
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Value float64 `json:"value"`
}

const rankedListSize = 5

// Build computes a Report over items. Items missing a field simply do not
// contribute to the aggregates of that field.
func Build(items []models.Item) Report {
	report := Report{
		ItemCount:       len(items),
		RatingHistogram: map[int]int{},
	}

	var priceSum, ratingSum float64
	var discounted, rated int
	report.PriceMin = math.Inf(1)

	for _, item := range items {
		if item.Price != nil {
			report.PricedCount++
			priceSum += *item.Price
			report.PriceMin = math.Min(report.PriceMin, *item.Price)
			report.PriceMax = math.Max(report.PriceMax, *item.Price)
		}
		if item.DiscountPrice != nil {
			discounted++
		}
		if item.Rating != nil {
			rated++
			ratingSum += *item.Rating
			bucket := int(math.Round(*item.Rating))
			if bucket < 1 {
				bucket = 1
			}
			if bucket > 5 {
				bucket = 5
			}
			report.RatingHistogram[bucket]++
		}
	}

	if report.PricedCount > 0 {
		report.PriceAvg = priceSum / float64(report.PricedCount)
	} else {
		report.PriceMin = 0
	}
	if report.ItemCount > 0 {
		report.DiscountShare = float64(discounted) / float64(report.ItemCount)
	}
	if rated > 0 {
		report.RatingAvg = ratingSum / float64(rated)
	}

	report.TopRated = rank(items, rankedListSize, func(it models.Item) (float64, bool) {
		if it.Rating == nil {
			return 0, false
		}
		return *it.Rating, true
	})
	report.MostReviewed = rank(items, rankedListSize, func(it models.Item) (float64, bool) {
		if it.RatingCount == nil {
			return 0, false
		}
		return float64(*it.RatingCount), true
	})

	return report
}

// rank returns the top n items by the given value, descending. Ties keep
// input order so results stay stable across runs.
func rank(items []models.Item, n int, value func(models.Item) (float64, bool)) []Entry {
	entries := []Entry{}
	for _, item := range items {
		if v, ok := value(item); ok {
			entries = append(entries, Entry{Title: item.Title, URL: item.URL, Value: v})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Value > entries[j].Value
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
