package parser

import (
	"encoding/json"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"github.com/meliscout/meli-scraper/internal/models"
)

// extractPreloadedState reads the server's preloaded application state out
// of the script#__PRELOADED_STATE__ tag. Malformed JSON or missing keys are
// treated as a parse miss.
func extractPreloadedState(doc *goquery.Document) []models.RawItem {
	script := doc.Find("script#__PRELOADED_STATE__").First()
	if script.Length() == 0 {
		return nil
	}

	var state map[string]any
	if err := json.Unmarshal([]byte(script.Text()), &state); err != nil {
		return nil
	}

	search := asMap(asMap(state["pageStoreState"])["search"])
	if search == nil {
		search = asMap(asMap(state["pageState"])["initialState"])
	}
	results, ok := search["results"].([]any)
	if !ok {
		return nil
	}

	var items []models.RawItem
	for _, entry := range results {
		r := asMap(entry)
		if r == nil {
			continue
		}

		// Title is either a plain string or a {text: ...} wrapper.
		title := asString(r["title"])
		if title == "" {
			title = asString(asMap(r["title"])["text"])
		}
		url := asString(r["permalink"])
		if url == "" || title == "" {
			continue
		}

		item := models.RawItem{
			Title: title,
			URL:   url,
			Price: asFloat(r["price"]),
		}
		if img := asString(r["thumbnail"]); img != "" {
			item.Image = models.String(img)
		} else if img := asString(r["image"]); img != "" {
			item.Image = models.String(img)
		}
		if reviews := asMap(r["reviews"]); reviews != nil {
			item.Rating = asFloat(reviews["rating_average"])
			item.RatingCount = asInt(reviews["total"])
		}
		items = append(items, item)
	}
	return items
}

// extractJSONLDListing reads schema.org ItemList / SearchResultsPage blocks.
func extractJSONLDListing(doc *goquery.Document) []models.RawItem {
	var items []models.RawItem
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, script *goquery.Selection) {
		var data map[string]any
		if err := json.Unmarshal([]byte(script.Text()), &data); err != nil {
			return
		}
		typ := asString(data["@type"])
		if typ != "ItemList" && typ != "SearchResultsPage" {
			return
		}
		elements, ok := data["itemListElement"].([]any)
		if !ok {
			return
		}
		for _, el := range elements {
			entry := asMap(el)
			if entry == nil {
				continue
			}
			node := asMap(entry["item"])
			if node == nil {
				node = entry
			}

			name := asString(node["name"])
			if name == "" {
				name = asString(entry["name"])
			}
			url := asString(node["url"])
			if url == "" {
				url = asString(entry["url"])
			}
			if name == "" || url == "" {
				continue
			}

			item := models.RawItem{Title: name, URL: url}
			if offers := asMap(node["offers"]); offers != nil {
				item.Price = asFloat(offers["price"])
				if item.Price == nil {
					item.Price = asFloat(asMap(offers["priceSpecification"])["price"])
				}
			}
			if agg := asMap(node["aggregateRating"]); agg != nil {
				item.Rating = asFloat(agg["ratingValue"])
				item.RatingCount = asInt(agg["reviewCount"])
			}
			items = append(items, item)
		}
	})
	return items
}

// Loose-typed JSON helpers. Structured-data blocks carry numbers both as
// JSON numbers and as strings, so conversions accept either.

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return &f
		}
	}
	return nil
}

func asInt(v any) *int {
	switch t := v.(type) {
	case float64:
		i := int(t)
		return &i
	case string:
		if i, err := strconv.Atoi(t); err == nil {
			return &i
		}
	}
	return nil
}
