package parser

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/meliscout/meli-scraper/internal/models"
)

const (
	// MaxReviews caps how many reviews one item may carry, rendered
	// capture included.
	MaxReviews = 60
	// MinStaticReviews is the threshold below which the caller escalates
	// to a browser-driven review capture.
	MinStaticReviews = 10
)

// ExtractDetail parses a product detail document into enrichment fields.
// Every field is optional; an empty DetailFields is a valid outcome.
func ExtractDetail(html string) models.DetailFields {
	var detail models.DetailFields

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return detail
	}

	if node := firstMatch(doc.Selection,
		"div.ui-pdp-description__content",
		"p.ui-pdp-description__content",
		"div.item-description",
	); node != nil {
		if text := strings.TrimSpace(node.Text()); text != "" {
			detail.Description = models.String(text)
		}
	}

	if node := doc.Find("span.ui-pdp-subtitle").First(); node.Length() > 0 {
		detail.Sold = firstInt(node.Text())
	}

	detail.Rating, detail.RatingCount = detailRating(doc)
	detail.Reviews = extractReviews(doc)
	if len(detail.Reviews) == 0 {
		detail.Reviews = extractJSONLDReviews(doc)
	}
	if len(detail.Reviews) > MaxReviews {
		detail.Reviews = detail.Reviews[:MaxReviews]
	}

	return detail
}

// detailRating reads rating and rating count, preferring itemprop microdata
// attributes over visible DOM nodes.
func detailRating(doc *goquery.Document) (*float64, *int) {
	var rating *float64
	var count *int

	if node := doc.Find(`[itemprop="ratingValue"]`).First(); node.Length() > 0 {
		if content, ok := node.Attr("content"); ok {
			rating = parseDecimalComma(content)
		}
	}
	if node := doc.Find(`[itemprop="ratingCount"]`).First(); node.Length() > 0 {
		if content, ok := node.Attr("content"); ok {
			count = firstInt(content)
		}
	}

	if rating == nil {
		if node := doc.Find("span.ui-pdp-review__rating").First(); node.Length() > 0 {
			rating = parseDecimalComma(strings.TrimSpace(node.Text()))
		}
	}
	if count == nil {
		if node := doc.Find("span.ui-pdp-review__amount").First(); node.Length() > 0 {
			count = firstInt(node.Text())
		}
	}

	return rating, count
}

func extractReviews(doc *goquery.Document) []models.Review {
	var reviews []models.Review
	doc.Find("div.ui-review").Each(func(_ int, card *goquery.Selection) {
		if len(reviews) >= MaxReviews {
			return
		}
		var review models.Review

		if node := card.Find(".ui-review__title").First(); node.Length() > 0 {
			if t := strings.TrimSpace(node.Text()); t != "" {
				review.Title = models.String(t)
			}
		}
		if node := firstMatch(card, ".ui-review__comment-text", ".ui-pdp-review__comment"); node != nil {
			if body := strings.TrimSpace(node.Text()); body != "" {
				review.Content = models.String(body)
			}
		}
		if node := card.Find(".ui-review__rating").First(); node.Length() > 0 {
			review.Rate = starRating(node.Text())
		}
		if node := card.Find("time").First(); node.Length() > 0 {
			if dt, ok := node.Attr("datetime"); ok {
				review.Date = models.String(dt)
			}
		}

		if review.Title != nil || review.Content != nil {
			reviews = append(reviews, review)
		}
	})
	return reviews
}

// extractJSONLDReviews reads schema.org review arrays, the fallback when no
// review cards are present in the DOM.
func extractJSONLDReviews(doc *goquery.Document) []models.Review {
	var reviews []models.Review
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, script *goquery.Selection) {
		var data map[string]any
		if err := json.Unmarshal([]byte(script.Text()), &data); err != nil {
			return
		}
		list, ok := data["review"].([]any)
		if !ok {
			return
		}
		for _, entry := range list {
			r := asMap(entry)
			if r == nil {
				continue
			}
			var review models.Review
			if name := asString(r["name"]); name != "" {
				review.Title = models.String(name)
			}
			if body := asString(r["reviewBody"]); body != "" {
				review.Content = models.String(body)
			}
			if rr := asMap(r["reviewRating"]); rr != nil {
				if v := asInt(rr["ratingValue"]); v != nil && *v > 0 {
					review.Rate = v
				}
			}
			if date := asString(r["datePublished"]); date != "" {
				review.Date = models.String(date)
			}
			if review.Title != nil || review.Content != nil {
				reviews = append(reviews, review)
			}
		}
	})
	return reviews
}
