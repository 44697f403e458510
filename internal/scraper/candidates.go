package scraper

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const listingBase = "https://listado.mercadolibre.com.co"

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	slugCharsRe  = regexp.MustCompile(`[^a-z0-9\-]`)
	slugPathRe   = regexp.MustCompile(`listado\.mercadolibre\.com\.co/([^/?#]+)`)
	fragmentRe   = regexp.MustCompile(`#D\[A:([^\]]+)\]`)
	productURLRe = regexp.MustCompile(`(articulo\.mercadolibre\.com\.co|www\.mercadolibre\.com\.co/.*/p/)`)

	stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Slugify converts free text into the marketplace's URL-safe slug form:
// accents stripped, lowercase, whitespace collapsed to hyphens, anything
// outside [a-z0-9-] dropped. Idempotent on already-normalized input.
func Slugify(text string) string {
	ascii, _, err := transform.String(stripMarks, text)
	if err != nil {
		ascii = text
	}
	var b strings.Builder
	for _, r := range ascii {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	slug := strings.ToLower(strings.TrimSpace(b.String()))
	slug = whitespaceRe.ReplaceAllString(slug, "-")
	return slugCharsRe.ReplaceAllString(slug, "")
}

// BuildSearchCandidates derives the listing URL candidates for a keyword.
// Both shapes must be tried because the site inconsistently serves results
// depending on URL form. An empty keyword yields no candidates.
func BuildSearchCandidates(keyword string) []string {
	slug := Slugify(keyword)
	if slug == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s/%s", listingBase, slug),
		fmt.Sprintf("%s/%s?sb=all_mercadolibre#D[A:%s]", listingBase, slug, slug),
	}
}

// QueryFromListingURL recovers a search keyword from a listing URL, either
// from its slug path segment or from the embedded #D[A:...] fragment.
// Returns "" when neither shape is present.
func QueryFromListingURL(url string) string {
	if m := slugPathRe.FindStringSubmatch(url); m != nil {
		return strings.ReplaceAll(m[1], "-", " ")
	}
	if m := fragmentRe.FindStringSubmatch(url); m != nil {
		return strings.ReplaceAll(m[1], "-", " ")
	}
	return ""
}

// IsProductURL reports whether a URL has the marketplace's product shape,
// as opposed to a category or ad link.
func IsProductURL(url string) bool {
	if url == "" {
		return false
	}
	return productURLRe.MatchString(url)
}
