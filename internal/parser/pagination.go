package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NextPageURL locates the "next" pagination control and returns its href,
// or "" when the listing has no further page.
func NextPageURL(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	href, _ := doc.Find("li.andes-pagination__button--next a").First().Attr("href")
	return href
}
