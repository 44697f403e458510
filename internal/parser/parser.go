// Package parser turns fetched marketplace documents into partial product
// records. Every extractor is tolerant: a selector that matches nothing
// yields an empty result, never an error, so callers can escalate to the
// next strategy.
package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	numberRe       = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
	intRe          = regexp.MustCompile(`(\d+)`)
	leadingStarsRe = regexp.MustCompile(`(\d+)(?:\.|,)?`)
)

// parseMoney normalizes a display price: thousands dots stripped, decimal
// comma converted, leading numeric token taken.
func parseMoney(text string) *float64 {
	t := strings.ReplaceAll(text, ".", "")
	t = strings.ReplaceAll(t, ",", ".")
	m := numberRe.FindStringSubmatch(t)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseDecimalComma reads a rating-style value such as "4,6".
func parseDecimalComma(text string) *float64 {
	t := strings.TrimSpace(strings.ReplaceAll(text, ",", "."))
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return nil
	}
	return &v
}

// firstInt extracts the first integer embedded in text.
func firstInt(text string) *int {
	m := intRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &v
}

// starRating reads the leading digit out of a review rating string such as
// "5.0" or "4,0".
func starRating(text string) *int {
	m := leadingStarsRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return nil
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &v
}
