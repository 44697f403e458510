// Package browser renders marketplace pages with a real Chromium via
// Playwright. Each call acquires its own browser session and tears it
// down before returning, so a crashed render never poisons later ones.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/meliscout/meli-scraper/internal/fetch"
	"github.com/meliscout/meli-scraper/internal/models"
	"github.com/meliscout/meli-scraper/internal/parser"
	"github.com/meliscout/meli-scraper/internal/scraper"
)

const (
	gotoTimeoutMs     = 30000
	selectorTimeoutMs = 8000
	clickTimeoutMs    = 1500
	scrollDelayMs     = 400

	listingScrolls = 5
	reviewScrolls  = 12
)

// consentSelectors dismiss the cookie and onboarding dialogs the site
// shows to fresh browser profiles.
var consentSelectors = []string{
	`button:has-text("Aceptar")`,
	`button:has-text("Entendido")`,
	`button:has-text("OK")`,
	`[data-testid="action:understood-button"]`,
}

// reviewOpenSelectors expand the review panel on a product page.
var reviewOpenSelectors = []string{
	`a:has-text("Opiniones")`,
	`a:has-text("Ver todas")`,
	`a:has-text("Ver más")`,
	`a[href*="#reviews"]`,
}

// listingWaitSelectors confirm a listing page finished its client-side
// hydration, in order of how modern the markup is.
var listingWaitSelectors = []string{
	"li.ui-search-layout__item",
	"a.poly-component__title",
	"script#__PRELOADED_STATE__",
}

// Renderer drives headless Chromium. It satisfies scraper.Renderer.
type Renderer struct {
	identity fetch.IdentitySelector
	headless bool
	logger   *slog.Logger
}

func New(identity fetch.IdentitySelector, logger *slog.Logger) *Renderer {
	if identity == nil {
		identity = fetch.NewRandomSelector(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		identity: identity,
		headless: true,
		logger:   logger.With("component", "browser"),
	}
}

// SetHeadless toggles the browser window, useful when debugging selectors.
func (r *Renderer) SetHeadless(headless bool) {
	r.headless = headless
}

// FetchRendered loads url, dismisses consent dialogs, waits for the page
// to hydrate and scrolls to trigger lazy loading, then returns the live DOM.
func (r *Renderer) FetchRendered(ctx context.Context, url, waitSelector string) (string, error) {
	sess, err := r.newSession(ctx)
	if err != nil {
		return "", err
	}
	defer sess.close()

	if err := sess.goTo(url); err != nil {
		return "", err
	}
	sess.dismissConsent()
	sess.waitForAny(prependSelector(waitSelector, listingWaitSelectors))
	sess.scroll(listingScrolls)

	html, err := sess.page.Content()
	if err != nil {
		return "", fmt.Errorf("read page content: %w", err)
	}
	return html, nil
}

// CaptureSearch loads a listing URL while intercepting the XHR responses
// the page issues, and returns any search results found in their JSON
// payloads. This recovers items even when the DOM never materializes.
func (r *Renderer) CaptureSearch(ctx context.Context, url string) ([]models.RawItem, error) {
	sess, err := r.newSession(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.close()

	var mu sync.Mutex
	var captured []models.RawItem
	sess.page.OnResponse(func(resp playwright.Response) {
		mu.Lock()
		defer mu.Unlock()
		if len(captured) > 0 {
			return
		}
		if ct, ok := resp.Headers()["content-type"]; !ok || !strings.Contains(ct, "json") {
			return
		}
		if !strings.Contains(resp.URL(), "search") && !strings.Contains(resp.URL(), "api") {
			return
		}
		body, err := resp.Body()
		if err != nil {
			return
		}
		if items := itemsFromCapturedJSON(body); len(items) > 0 {
			captured = items
			r.logger.Debug("captured search response", "url", resp.URL(), "items", len(items))
		}
	})

	if err := sess.goTo(url); err != nil {
		return nil, err
	}
	sess.dismissConsent()
	sess.scroll(listingScrolls)

	mu.Lock()
	defer mu.Unlock()
	return captured, nil
}

// CaptureReviews opens the review panel on a product page, scrolls it to
// force pagination and scrapes the review cards from the live DOM.
func (r *Renderer) CaptureReviews(ctx context.Context, url string, max int) ([]models.Review, error) {
	sess, err := r.newSession(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.close()

	if err := sess.goTo(url); err != nil {
		return nil, err
	}
	sess.dismissConsent()

	for _, sel := range reviewOpenSelectors {
		if err := sess.click(sel); err == nil {
			break
		}
	}
	sess.waitForAny([]string{"div.ui-review", "section#reviews"})
	sess.scroll(reviewScrolls)

	html, err := sess.page.Content()
	if err != nil {
		return nil, fmt.Errorf("read page content: %w", err)
	}

	reviews := parser.ExtractDetail(html).Reviews
	if max > 0 && len(reviews) > max {
		reviews = reviews[:max]
	}
	return reviews, nil
}

type session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
}

func (r *Renderer) newSession(ctx context.Context) (*session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scraper.ErrRendererUnavailable, err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(r.headless),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("%w: %v", scraper.ErrRendererUnavailable, err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Locale:    playwright.String("es-CO"),
		UserAgent: playwright.String(r.identity.UserAgent()),
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("open page: %w", err)
	}

	return &session{pw: pw, browser: browser, page: page}, nil
}

func (s *session) close() {
	s.browser.Close()
	s.pw.Stop()
}

func (s *session) goTo(url string) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(gotoTimeoutMs),
	})
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (s *session) dismissConsent() {
	for _, sel := range consentSelectors {
		if err := s.click(sel); err == nil {
			return
		}
	}
}

func (s *session) click(selector string) error {
	return s.page.Locator(selector).First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(clickTimeoutMs),
	})
}

func (s *session) waitForAny(selectors []string) {
	for _, sel := range selectors {
		_, err := s.page.WaitForSelector(sel, playwright.PageWaitForSelectorOptions{
			Timeout: playwright.Float(selectorTimeoutMs),
		})
		if err == nil {
			return
		}
	}
}

func (s *session) scroll(times int) {
	for i := 0; i < times; i++ {
		if err := s.page.Mouse().Wheel(0, 1200); err != nil {
			return
		}
		s.page.WaitForTimeout(scrollDelayMs)
	}
}

func prependSelector(sel string, rest []string) []string {
	if sel == "" {
		return rest
	}
	out := make([]string, 0, len(rest)+1)
	out = append(out, sel)
	for _, r := range rest {
		if r != sel {
			out = append(out, r)
		}
	}
	return out
}

// itemsFromCapturedJSON digs a result list out of an intercepted payload.
// The site's internal APIs wrap results a few different ways; any list
// under a "results" or "items" key, at the top level or one level down,
// is accepted.
func itemsFromCapturedJSON(body []byte) []models.RawItem {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	root, ok := payload.(map[string]any)
	if !ok {
		return nil
	}

	list := resultList(root)
	if list == nil {
		for _, v := range root {
			if nested, ok := v.(map[string]any); ok {
				if list = resultList(nested); list != nil {
					break
				}
			}
		}
	}
	if list == nil {
		return nil
	}

	var out []models.RawItem
	for _, entry := range list {
		rec, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		item := models.RawItem{
			Title: stringField(rec, "title"),
			URL:   stringField(rec, "permalink"),
		}
		if item.Title == "" || item.URL == "" {
			continue
		}
		if price, ok := floatField(rec, "price"); ok {
			item.Price = &price
		}
		if thumb := stringField(rec, "thumbnail"); thumb != "" {
			item.Image = &thumb
		}
		out = append(out, item)
	}
	return out
}

func resultList(m map[string]any) []any {
	for _, key := range []string{"results", "items"} {
		if list, ok := m[key].([]any); ok && len(list) > 0 {
			return list
		}
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func floatField(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}
