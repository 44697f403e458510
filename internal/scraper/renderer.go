package scraper

import (
	"context"
	"errors"

	"github.com/meliscout/meli-scraper/internal/models"
)

// ErrRendererUnavailable signals that browser automation is not present in
// this runtime. The orchestrator skips rendered strategies when it sees it.
var ErrRendererUnavailable = errors.New("renderer unavailable")

// Renderer is the optional browser-automation capability. The engine's
// core logic runs without one; production builds inject the playwright
// implementation from internal/browser.
type Renderer interface {
	// FetchRendered returns the fully hydrated document for url after
	// client-side execution, waiting for waitSelector (or known result
	// indicators) before capturing.
	FetchRendered(ctx context.Context, url, waitSelector string) (string, error)
	// CaptureSearch drives a rendered session and intercepts the JSON
	// search responses the page itself issues.
	CaptureSearch(ctx context.Context, url string) ([]models.RawItem, error)
	// CaptureReviews opens a detail page, expands the review section and
	// scrapes up to max review cards.
	CaptureReviews(ctx context.Context, url string, max int) ([]models.Review, error)
}

// UnavailableRenderer is the no-op implementation used when browser
// automation is not installed.
type UnavailableRenderer struct{}

func (UnavailableRenderer) FetchRendered(context.Context, string, string) (string, error) {
	return "", ErrRendererUnavailable
}

func (UnavailableRenderer) CaptureSearch(context.Context, string) ([]models.RawItem, error) {
	return nil, ErrRendererUnavailable
}

func (UnavailableRenderer) CaptureReviews(context.Context, string, int) ([]models.Review, error) {
	return nil, ErrRendererUnavailable
}
