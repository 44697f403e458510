package models

// Review is a single buyer review collected from a product detail page.
// Rate is the 1-5 star value; Date is the ISO-8601 string from the page's
// time element. Any of the fields may be absent.
type Review struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
	Rate    *int    `json:"rate"`
	Date    *string `json:"date"`
}

// RawItem is the partial record extracted from a listing page. It stays
// mutable until detail enrichment completes.
type RawItem struct {
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Image         *string  `json:"image"`
	Price         *float64 `json:"price"`
	DiscountPrice *float64 `json:"discount_price"`
	Rating        *float64 `json:"rating"`
	RatingCount   *int     `json:"rating_count"`
}

// DetailFields holds the enrichment data extracted from a product detail
// page. Rating and RatingCount are kept separate from the listing values so
// merge precedence stays explicit.
type DetailFields struct {
	Description *string
	Sold        *int
	Rating      *float64
	RatingCount *int
	Reviews     []Review
}

// Item is a finished product record: listing fields merged with detail
// enrichment. Once appended to a result slice it is never mutated again.
type Item struct {
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Image         *string  `json:"image"`
	Price         *float64 `json:"price"`
	DiscountPrice *float64 `json:"discount_price"`
	Rating        *float64 `json:"rating"`
	RatingCount   *int     `json:"rating_count"`
	Sold          *int     `json:"sold"`
	Description   *string  `json:"description"`
	Reviews       []Review `json:"reviews"`
}

// NewItem builds an Item from a listing record and an optional detail
// record. Detail-sourced rating and rating count win over the listing
// values whenever the detail pass returned one.
func NewItem(raw RawItem, detail *DetailFields) Item {
	item := Item{
		Title:         raw.Title,
		URL:           raw.URL,
		Image:         raw.Image,
		Price:         raw.Price,
		DiscountPrice: raw.DiscountPrice,
		Rating:        raw.Rating,
		RatingCount:   raw.RatingCount,
		Reviews:       []Review{},
	}

	if detail == nil {
		return item
	}

	item.Description = detail.Description
	item.Sold = detail.Sold
	if detail.Rating != nil {
		item.Rating = detail.Rating
	}
	if detail.RatingCount != nil {
		item.RatingCount = detail.RatingCount
	}
	if detail.Reviews != nil {
		item.Reviews = detail.Reviews
	}

	return item
}

// HasTitle reports whether the listing record carries a usable title.
func (r RawItem) HasTitle() bool {
	return r.Title != ""
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
