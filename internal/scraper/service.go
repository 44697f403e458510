package scraper

import (
	"context"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/meliscout/meli-scraper/internal/fetch"
	"github.com/meliscout/meli-scraper/internal/models"
	"github.com/meliscout/meli-scraper/internal/parser"
	"github.com/meliscout/meli-scraper/internal/ratelimit"
)

const (
	waitListingSelector = "li.ui-search-layout__item"
	detailCacheSize     = 256
	defaultJitter       = 500 * time.Millisecond
)

// Options control one engine invocation.
type Options struct {
	MaxPages     int
	PerPageDelay time.Duration
	DetailDelay  time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxPages < 1 {
		o.MaxPages = 10
	}
	if o.PerPageDelay < 0 {
		o.PerPageDelay = 0
	}
	if o.DetailDelay < 0 {
		o.DetailDelay = 0
	}
	return o
}

// delegation guards the mutual fallback between the keyword and URL entry
// points: each direction is taken at most once per invocation.
type delegation struct {
	keywordTried bool
	urlTried     bool
}

// Service sequences candidate building, multi-strategy fetch and
// extraction, pagination, detail enrichment and dedup/merge. Both entry
// points are total: irrecoverable failure yields an empty slice, never an
// error.
type Service struct {
	fetcher     *fetch.Client
	renderer    Renderer
	api         *APIClient
	pacer       *ratelimit.Pacer
	detailCache *lru.Cache[string, *fetch.Result]
	metrics     *Metrics
	logger      *slog.Logger
}

func NewService(fetcher *fetch.Client, renderer Renderer, logger *slog.Logger) *Service {
	if fetcher == nil {
		fetcher = fetch.NewClient(nil, fetch.DefaultOptions())
	}
	if renderer == nil {
		renderer = UnavailableRenderer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, _ := lru.New[string, *fetch.Result](detailCacheSize)
	return &Service{
		fetcher:     fetcher,
		renderer:    renderer,
		api:         NewAPIClient(fetcher),
		pacer:       ratelimit.NewPacer(defaultJitter),
		detailCache: cache,
		metrics:     NewMetrics(),
		logger:      logger.With("component", "scraper"),
	}
}

// Metrics exposes the engine's collector registry for the /metrics handler.
func (s *Service) Metrics() *Metrics {
	return s.metrics
}

// Pacer exposes the delay scheduler; tests zero its jitter.
func (s *Service) Pacer() *ratelimit.Pacer {
	return s.pacer
}

// ScrapeByKeyword walks the marketplace listing for a keyword, enriching
// every item with its detail page. See Options for pacing knobs.
func (s *Service) ScrapeByKeyword(ctx context.Context, keyword string, opts Options) []models.Item {
	opts = opts.withDefaults()
	s.logger.Info("starting keyword scrape", "keyword", keyword, "max_pages", opts.MaxPages)
	items := s.scrapeKeyword(ctx, keyword, opts, delegation{keywordTried: true})
	s.logger.Info("keyword scrape finished", "keyword", keyword, "items", len(items))
	return items
}

// ScrapeByURL runs the same pipeline against an arbitrary listing URL.
func (s *Service) ScrapeByURL(ctx context.Context, url string, opts Options) []models.Item {
	opts = opts.withDefaults()
	s.logger.Info("starting url scrape", "url", url, "max_pages", opts.MaxPages)
	items := s.scrapeURL(ctx, url, opts, delegation{urlTried: true})
	s.logger.Info("url scrape finished", "url", url, "items", len(items))
	return items
}

func (s *Service) scrapeKeyword(ctx context.Context, keyword string, opts Options, d delegation) []models.Item {
	candidates := BuildSearchCandidates(keyword)
	if len(candidates) == 0 {
		return []models.Item{}
	}

	startURL, startHTML := s.selectStartPage(ctx, candidates)
	if startURL == "" {
		return s.keywordFallbacks(ctx, keyword, candidates, opts, d)
	}
	return s.paginate(ctx, startURL, startHTML, opts, false, d)
}

// keywordFallbacks runs when no candidate produced a titled item set:
// URL-flow on the last candidate, then the live API, then rendered
// response capture on the first candidate. First non-empty result wins.
func (s *Service) keywordFallbacks(ctx context.Context, keyword string, candidates []string, opts Options, d delegation) []models.Item {
	if !d.urlTried {
		next := d
		next.urlTried = true
		s.metrics.StrategyAttempts.WithLabelValues(StrategyURLDelegate).Inc()
		if items := s.scrapeURL(ctx, candidates[len(candidates)-1], opts, next); len(items) > 0 {
			return items
		}
	}

	s.metrics.StrategyAttempts.WithLabelValues(StrategyAPI).Inc()
	if raw := s.api.SearchItems(ctx, keyword); len(raw) > 0 {
		s.logger.Info("keyword resolved via live api", "keyword", keyword, "items", len(raw))
		return itemsFromRaw(raw)
	}

	s.metrics.StrategyAttempts.WithLabelValues(StrategyCapture).Inc()
	if raw, err := s.renderer.CaptureSearch(ctx, candidates[0]); err == nil && len(raw) > 0 {
		s.logger.Info("keyword resolved via response capture", "keyword", keyword, "items", len(raw))
		return itemsFromRaw(raw)
	}

	return []models.Item{}
}

func (s *Service) scrapeURL(ctx context.Context, url string, opts Options, d delegation) []models.Item {
	// Recovering a keyword and rerunning the richer candidate chain is the
	// preferred path; the guard keeps the mutual delegation bounded.
	if q := QueryFromListingURL(url); q != "" && !d.keywordTried {
		next := d
		next.keywordTried = true
		s.metrics.StrategyAttempts.WithLabelValues(StrategyKeywordRoute).Inc()
		if items := s.scrapeKeyword(ctx, q, opts, next); len(items) > 0 {
			return items
		}
	}
	return s.paginate(ctx, url, "", opts, true, d)
}

// selectStartPage tries each candidate with the static fetcher, escalating
// to a rendered fetch when extraction comes up empty, and accepts the
// first candidate whose items include at least one title.
func (s *Service) selectStartPage(ctx context.Context, candidates []string) (string, string) {
	for _, cand := range candidates {
		if ctx.Err() != nil {
			return "", ""
		}

		var html string
		s.metrics.StrategyAttempts.WithLabelValues(StrategyStatic).Inc()
		if res, err := s.fetcher.Get(ctx, cand); err == nil {
			html = res.Body
		}

		items := parser.ExtractListing(html)
		if len(items) == 0 {
			s.metrics.StrategyAttempts.WithLabelValues(StrategyRendered).Inc()
			if rendered, err := s.renderer.FetchRendered(ctx, cand, waitListingSelector); err == nil {
				if ri := parser.ExtractListing(rendered); len(ri) > 0 {
					items, html = ri, rendered
				}
			}
		}

		if anyTitle(items) {
			return cand, html
		}
	}
	return "", ""
}

// paginate is the shared page loop. urlFlow enables the extra fallbacks
// the direct-URL route carries: rendered refetch on failed page loads,
// candidate canonicalization and keyword delegation on an empty first
// page, live API and response capture on any empty page.
func (s *Service) paginate(ctx context.Context, startURL, firstHTML string, opts Options, urlFlow bool, d delegation) []models.Item {
	out := []models.Item{}
	seen := make(map[string]struct{})

	html := firstHTML
	nextURL := startURL
	pages := 0

	for nextURL != "" && pages < opts.MaxPages {
		if ctx.Err() != nil {
			return out
		}

		if pages > 0 || html == "" {
			res, err := s.fetcher.Get(ctx, nextURL)
			if err != nil {
				if !urlFlow {
					break
				}
				rendered, rerr := s.renderer.FetchRendered(ctx, nextURL, waitListingSelector)
				if rerr != nil {
					break
				}
				html = rendered
			} else {
				html = res.Body
			}
		}

		listing := parser.ExtractListing(html)

		if len(listing) == 0 && pages == 0 {
			s.metrics.StrategyAttempts.WithLabelValues(StrategyRendered).Inc()
			if rendered, err := s.renderer.FetchRendered(ctx, nextURL, waitListingSelector); err == nil {
				if items := parser.ExtractListing(rendered); len(items) > 0 {
					listing, html = items, rendered
				}
			}
		}

		if urlFlow && len(listing) == 0 && pages == 0 {
			if q := QueryFromListingURL(nextURL); q != "" {
				for _, cand := range BuildSearchCandidates(q) {
					h := s.fetchStaticOrRendered(ctx, cand)
					if h == "" {
						continue
					}
					if items := parser.ExtractListing(h); len(items) > 0 {
						nextURL, html, listing = cand, h, items
						break
					}
				}
				if len(listing) == 0 && !d.keywordTried {
					next := d
					next.keywordTried = true
					s.metrics.StrategyAttempts.WithLabelValues(StrategyKeywordRoute).Inc()
					return s.scrapeKeyword(ctx, q, opts, next)
				}
			}
		}

		if urlFlow && len(listing) == 0 {
			if q := QueryFromListingURL(nextURL); q != "" {
				s.metrics.StrategyAttempts.WithLabelValues(StrategyAPI).Inc()
				listing = s.api.SearchItems(ctx, q)
			}
		}
		if urlFlow && len(listing) == 0 {
			s.metrics.StrategyAttempts.WithLabelValues(StrategyCapture).Inc()
			if captured, err := s.renderer.CaptureSearch(ctx, nextURL); err == nil {
				listing = captured
			}
		}

		s.metrics.PagesTotal.Inc()
		s.logger.Debug("processing listing page", "url", nextURL, "page", pages+1, "items", len(listing))

		for _, raw := range listing {
			if ctx.Err() != nil {
				return out
			}

			item := s.enrich(ctx, raw, opts)

			if !IsProductURL(item.URL) {
				s.metrics.ItemsDropped.WithLabelValues("not_product").Inc()
				continue
			}
			if item.Title == "" {
				s.metrics.ItemsDropped.WithLabelValues("untitled").Inc()
				continue
			}
			if _, dup := seen[item.URL]; dup {
				s.metrics.ItemsDropped.WithLabelValues("duplicate").Inc()
				continue
			}
			seen[item.URL] = struct{}{}
			out = append(out, item)
			s.metrics.ItemsTotal.Inc()
		}

		pages++
		nextURL = parser.NextPageURL(html)

		if nextURL != "" {
			if err := s.pacer.Sleep(ctx, opts.PerPageDelay); err != nil {
				return out
			}
		}
	}

	return out
}

// enrich fetches and merges the detail page for one listing record. Detail
// failures never fail the item: whatever was recovered is kept. The item's
// URL is updated to the redirect target when the detail fetch resolved one.
func (s *Service) enrich(ctx context.Context, raw models.RawItem, opts Options) models.Item {
	if raw.URL == "" {
		return models.NewItem(raw, nil)
	}
	if err := s.pacer.Sleep(ctx, opts.DetailDelay); err != nil {
		return models.NewItem(raw, nil)
	}

	s.metrics.DetailFetches.Inc()
	res := s.fetchDetail(ctx, raw.URL)
	if res == nil {
		return models.NewItem(raw, nil)
	}

	detail := parser.ExtractDetail(res.Body)
	finalURL := res.FinalURL
	if finalURL == "" {
		finalURL = raw.URL
	}

	if len(detail.Reviews) < parser.MinStaticReviews {
		if more, err := s.renderer.CaptureReviews(ctx, finalURL, parser.MaxReviews); err == nil && len(more) > 0 {
			detail.Reviews = append(detail.Reviews, more...)
			if len(detail.Reviews) > parser.MaxReviews {
				detail.Reviews = detail.Reviews[:parser.MaxReviews]
			}
		}
	}

	raw.URL = finalURL
	return models.NewItem(raw, &detail)
}

// fetchDetail memoizes detail pages so the same product URL reached via
// different strategies is fetched at most once per process.
func (s *Service) fetchDetail(ctx context.Context, url string) *fetch.Result {
	if res, ok := s.detailCache.Get(url); ok {
		return res
	}
	res, err := s.fetcher.Get(ctx, url)
	if err != nil {
		s.logger.Debug("detail fetch failed", "url", url, "error", err)
		return nil
	}
	s.detailCache.Add(url, res)
	return res
}

func (s *Service) fetchStaticOrRendered(ctx context.Context, url string) string {
	if res, err := s.fetcher.Get(ctx, url); err == nil {
		return res.Body
	}
	if rendered, err := s.renderer.FetchRendered(ctx, url, waitListingSelector); err == nil {
		return rendered
	}
	return ""
}

func anyTitle(items []models.RawItem) bool {
	for _, it := range items {
		if it.HasTitle() {
			return true
		}
	}
	return false
}

func itemsFromRaw(raw []models.RawItem) []models.Item {
	out := make([]models.Item, 0, len(raw))
	for _, r := range raw {
		out = append(out, models.NewItem(r, nil))
	}
	return out
}
