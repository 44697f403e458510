package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/meliscout/meli-scraper/internal/models"
)

// ExtractListing parses a search-results document into partial item
// records. Strategies are tried in order until one yields a non-empty
// sequence: current DOM layout, legacy DOM layout, embedded page-state
// JSON, JSON-LD structured data.
func ExtractListing(html string) []models.RawItem {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	if items := extractPrimaryLayout(doc); len(items) > 0 {
		return items
	}
	if items := extractLegacyLayout(doc); len(items) > 0 {
		return items
	}
	if items := extractPreloadedState(doc); len(items) > 0 {
		return items
	}
	return extractJSONLDListing(doc)
}

func extractPrimaryLayout(doc *goquery.Document) []models.RawItem {
	var items []models.RawItem
	doc.Find("li.ui-search-layout__item").Each(func(_ int, li *goquery.Selection) {
		item := itemFromCard(li)

		if node := firstMatch(li,
			"span.ui-search-reviews__rating-number",
			"span.ui-search-reviews__rating",
		); node != nil {
			item.Rating = parseDecimalComma(node.Text())
		}
		if node := li.Find("span.ui-search-reviews__amount").First(); node.Length() > 0 {
			item.RatingCount = firstInt(node.Text())
		}

		items = append(items, item)
	})
	return items
}

func extractLegacyLayout(doc *goquery.Document) []models.RawItem {
	var items []models.RawItem
	doc.Find("div.ui-search-result, div.ui-search-result__wrapper").Each(func(_ int, div *goquery.Selection) {
		items = append(items, itemFromCard(div))
	})
	return items
}

// itemFromCard reads the title/link/image/price sub-selectors shared by
// both DOM layouts. Missing optional fields never abort the record.
func itemFromCard(card *goquery.Selection) models.RawItem {
	var item models.RawItem

	if link := firstMatch(card,
		"a.poly-component__title",
		"a.ui-search-link",
		"a.ui-search-item__group__link",
		"a.ui-search-result__content-wrapper-link",
	); link != nil {
		if href, ok := link.Attr("href"); ok {
			item.URL = href
		}
	}

	if title := firstMatch(card,
		"a.poly-component__title",
		"h2.ui-search-item__title",
		"h3.poly-component__title-wrapper",
	); title != nil {
		item.Title = strings.TrimSpace(title.Text())
	}

	if img := firstMatch(card,
		"img.poly-component__picture",
		"img.ui-search-result-image__element",
		"img",
	); img != nil {
		if src, ok := img.Attr("data-src"); ok {
			item.Image = models.String(src)
		} else if src, ok := img.Attr("src"); ok {
			item.Image = models.String(src)
		}
	}

	item.Price, item.DiscountPrice = priceFromCard(card)
	return item
}

// priceFromCard reads the fraction/cents split representation plus the
// optional struck-through prior price.
func priceFromCard(card *goquery.Selection) (*float64, *float64) {
	var price, discount *float64

	fraction := card.Find("span.andes-money-amount__fraction").First()
	if fraction.Length() > 0 {
		text := strings.TrimSpace(fraction.Text())
		if cents := card.Find("span.andes-money-amount__cents").First(); cents.Length() > 0 {
			if c := strings.TrimSpace(cents.Text()); c != "" {
				text += "," + c
			}
		}
		price = parseMoney(text)
	}

	if strike := card.Find("s.ui-search-price__part").First(); strike.Length() > 0 {
		discount = parseMoney(strings.TrimSpace(strike.Text()))
	}

	return price, discount
}

// firstMatch returns the first selection matching any of the selectors, in
// order, or nil when none match.
func firstMatch(s *goquery.Selection, selectors ...string) *goquery.Selection {
	for _, sel := range selectors {
		if found := s.Find(sel).First(); found.Length() > 0 {
			return found
		}
	}
	return nil
}
