package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meliscout/meli-scraper/internal/fetch"
	"github.com/meliscout/meli-scraper/internal/models"
)

const (
	listingURL  = "https://listado.mercadolibre.com.co/teclado"
	listingAlt  = "https://listado.mercadolibre.com.co/teclado?sb=all_mercadolibre#D[A:teclado]"
	page2URL    = "https://listado.mercadolibre.com.co/teclado_Desde_51"
	apiURL      = "https://api.mercadolibre.com/sites/MCO/search?q=teclado&limit=50"
	productURL1 = "https://articulo.mercadolibre.com.co/MCO-1-teclado"
	productURL2 = "https://articulo.mercadolibre.com.co/MCO-2-mouse"
	productURL3 = "https://articulo.mercadolibre.com.co/MCO-3-pad"
)

// stubRenderer scripts the browser-dependent strategies.
type stubRenderer struct {
	renderedHTML map[string]string
	captured     []models.RawItem
	reviews      []models.Review
	reviewCalls  int
}

func (s *stubRenderer) FetchRendered(ctx context.Context, url, waitSelector string) (string, error) {
	if html, ok := s.renderedHTML[url]; ok {
		return html, nil
	}
	return "", ErrRendererUnavailable
}

func (s *stubRenderer) CaptureSearch(ctx context.Context, url string) ([]models.RawItem, error) {
	if s.captured == nil {
		return nil, ErrRendererUnavailable
	}
	return s.captured, nil
}

func (s *stubRenderer) CaptureReviews(ctx context.Context, url string, max int) ([]models.Review, error) {
	s.reviewCalls++
	if s.reviews == nil {
		return nil, ErrRendererUnavailable
	}
	return s.reviews, nil
}

func newTestService(renderer Renderer) *Service {
	fetcher := fetch.NewClient(nil, fetch.Options{
		Timeout:     5 * time.Second,
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		Jitter:      0,
	})
	fetcher.SetHTTPClient(&http.Client{Transport: httpmock.DefaultTransport})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(fetcher, renderer, logger)
	svc.Pacer().SetJitter(0)
	return svc
}

func cardHTML(title, url string) string {
	return fmt.Sprintf(`
<li class="ui-search-layout__item">
  <a class="poly-component__title" href="%s">%s</a>
  <span class="andes-money-amount__fraction">100.000</span>
</li>`, url, title)
}

func pageHTML(next string, cards ...string) string {
	html := "<ul>"
	for _, c := range cards {
		html += c
	}
	html += "</ul>"
	if next != "" {
		html += fmt.Sprintf(`<li class="andes-pagination__button--next"><a href="%s">Siguiente</a></li>`, next)
	}
	return html
}

func TestScrapeByKeywordWalksPagesAndDedupes(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	page1 := pageHTML(page2URL,
		cardHTML("Teclado RGB", productURL1),
		cardHTML("Mouse gamer", productURL2),
	)
	page2 := pageHTML("",
		cardHTML("Mouse gamer", productURL2),
		cardHTML("Pad de escritorio", productURL3),
		cardHTML("Categoría", "https://listado.mercadolibre.com.co/otros"),
		cardHTML("", productURL3+"-untitled"),
	)

	httpmock.RegisterResponder("GET", listingURL, httpmock.NewStringResponder(200, page1))
	httpmock.RegisterResponder("GET", page2URL, httpmock.NewStringResponder(200, page2))

	// Detail for the first product carries a better rating than the listing
	// plus a description; the others are bare pages.
	httpmock.RegisterResponder("GET", productURL1, httpmock.NewStringResponder(200, `
		<span itemprop="ratingValue" content="4,9"></span>
		<span itemprop="ratingCount" content="120"></span>
		<div class="ui-pdp-description__content">Retroiluminado</div>`))
	httpmock.RegisterResponder("GET", productURL2, httpmock.NewStringResponder(200, "<html></html>"))
	httpmock.RegisterResponder("GET", productURL3, httpmock.NewStringResponder(200, "<html></html>"))
	httpmock.RegisterResponder("GET", productURL3+"-untitled", httpmock.NewStringResponder(200, "<html></html>"))

	svc := newTestService(&stubRenderer{})
	items := svc.ScrapeByKeyword(context.Background(), "teclado", Options{MaxPages: 5})

	require.Len(t, items, 3)
	assert.Equal(t, "Teclado RGB", items[0].Title)
	assert.Equal(t, "Mouse gamer", items[1].Title)
	assert.Equal(t, "Pad de escritorio", items[2].Title)

	// Detail rating wins over listing data.
	require.NotNil(t, items[0].Rating)
	assert.InDelta(t, 4.9, *items[0].Rating, 0.001)
	require.NotNil(t, items[0].RatingCount)
	assert.Equal(t, 120, *items[0].RatingCount)
	require.NotNil(t, items[0].Description)
	assert.Equal(t, "Retroiluminado", *items[0].Description)
}

func TestScrapeByKeywordHonorsMaxPages(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	// Page links back to itself; the walk must still terminate.
	page := pageHTML(listingURL, cardHTML("Teclado RGB", productURL1))
	httpmock.RegisterResponder("GET", listingURL, httpmock.NewStringResponder(200, page))
	httpmock.RegisterResponder("GET", productURL1, httpmock.NewStringResponder(200, "<html></html>"))

	svc := newTestService(&stubRenderer{})
	items := svc.ScrapeByKeyword(context.Background(), "teclado", Options{MaxPages: 2})

	require.Len(t, items, 1)
}

func TestScrapeByKeywordRenderedEscalation(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	// Static fetches return a shell page with no items.
	httpmock.RegisterResponder("GET", listingURL, httpmock.NewStringResponder(200, "<html><body></body></html>"))
	httpmock.RegisterResponder("GET", listingAlt, httpmock.NewStringResponder(200, "<html><body></body></html>"))
	httpmock.RegisterResponder("GET", productURL1, httpmock.NewStringResponder(200, "<html></html>"))

	renderer := &stubRenderer{renderedHTML: map[string]string{
		listingURL: pageHTML("", cardHTML("Teclado RGB", productURL1)),
	}}

	svc := newTestService(renderer)
	items := svc.ScrapeByKeyword(context.Background(), "teclado", Options{MaxPages: 1})

	require.Len(t, items, 1)
	assert.Equal(t, "Teclado RGB", items[0].Title)
}

func TestScrapeByKeywordFallsBackToAPI(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	// Every listing shape serves an empty shell and the browser is down.
	empty := httpmock.NewStringResponder(200, "<html></html>")
	httpmock.RegisterResponder("GET", listingURL, empty)
	httpmock.RegisterResponder("GET", listingAlt, empty)

	httpmock.RegisterResponder("GET", apiURL, httpmock.NewStringResponder(200, `{
		"results": [
			{"title": "Teclado desde API", "permalink": "`+productURL1+`", "price": 150000},
			{"title": "Sin enlace"}
		]
	}`))
	httpmock.RegisterResponder("GET", productURL1, httpmock.NewStringResponder(200, "<html></html>"))

	svc := newTestService(UnavailableRenderer{})
	items := svc.ScrapeByKeyword(context.Background(), "teclado", Options{MaxPages: 1})

	require.NotEmpty(t, items)
	assert.Equal(t, "Teclado desde API", items[0].Title)
	require.NotNil(t, items[0].Price)
	assert.InDelta(t, 150000, *items[0].Price, 0.001)
}

func TestScrapeByKeywordTotalFailureYieldsEmpty(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	notFound := httpmock.NewStringResponder(404, "gone")
	httpmock.RegisterResponder("GET", listingURL, notFound)
	httpmock.RegisterResponder("GET", listingAlt, notFound)
	httpmock.RegisterResponder("GET", apiURL, notFound)

	svc := newTestService(UnavailableRenderer{})
	items := svc.ScrapeByKeyword(context.Background(), "teclado", Options{MaxPages: 1})

	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestScrapeByKeywordEmptyKeyword(t *testing.T) {
	svc := newTestService(UnavailableRenderer{})
	items := svc.ScrapeByKeyword(context.Background(), "   ", Options{})
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestScrapeByURLDelegatesToKeywordFlow(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	page := pageHTML("", cardHTML("Teclado RGB", productURL1))
	httpmock.RegisterResponder("GET", listingURL, httpmock.NewStringResponder(200, page))
	httpmock.RegisterResponder("GET", productURL1, httpmock.NewStringResponder(200, "<html></html>"))

	svc := newTestService(&stubRenderer{})
	items := svc.ScrapeByURL(context.Background(), listingURL, Options{MaxPages: 1})

	require.Len(t, items, 1)
	assert.Equal(t, "Teclado RGB", items[0].Title)
}

func TestEnrichEscalatesToRenderedReviews(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	page := pageHTML("", cardHTML("Teclado RGB", productURL1))
	httpmock.RegisterResponder("GET", listingURL, httpmock.NewStringResponder(200, page))
	// Detail page has only one static review, below the escalation threshold.
	httpmock.RegisterResponder("GET", productURL1, httpmock.NewStringResponder(200, `
		<div class="ui-review"><p class="ui-review__comment-text">corta</p></div>`))

	renderer := &stubRenderer{reviews: []models.Review{
		{Content: models.String("capturada 1")},
		{Content: models.String("capturada 2")},
	}}

	svc := newTestService(renderer)
	items := svc.ScrapeByKeyword(context.Background(), "teclado", Options{MaxPages: 1})

	require.Len(t, items, 1)
	assert.Equal(t, 1, renderer.reviewCalls)
	assert.Len(t, items[0].Reviews, 3)
}

func TestScrapeByKeywordContextCancelled(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newTestService(UnavailableRenderer{})
	items := svc.ScrapeByKeyword(ctx, "teclado", Options{MaxPages: 3})

	assert.NotNil(t, items)
	assert.Empty(t, items)
}
