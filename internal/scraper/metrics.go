package scraper

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the extraction engine on a
// dedicated registry.
type Metrics struct {
	Registry         *prometheus.Registry
	StrategyAttempts *prometheus.CounterVec
	PagesTotal       prometheus.Counter
	ItemsTotal       prometheus.Counter
	DetailFetches    prometheus.Counter
	ItemsDropped     *prometheus.CounterVec
}

// Strategy labels reported by the engine.
const (
	StrategyStatic       = "static"
	StrategyRendered     = "rendered"
	StrategyAPI          = "api"
	StrategyCapture      = "capture"
	StrategyURLDelegate  = "url_flow"
	StrategyKeywordRoute = "keyword_flow"
)

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meli_strategy_attempts_total",
			Help: "Fetch/extract strategy attempts by strategy name.",
		},
		[]string{"strategy"},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meli_pages_total",
			Help: "Listing pages traversed.",
		},
	)
	items := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meli_items_total",
			Help: "Items accepted into result sequences.",
		},
	)
	details := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meli_detail_fetches_total",
			Help: "Detail page fetches performed for enrichment.",
		},
	)
	dropped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meli_items_dropped_total",
			Help: "Extracted records excluded from results by reason.",
		},
		[]string{"reason"},
	)

	registry.MustRegister(attempts, pages, items, details, dropped)

	return &Metrics{
		Registry:         registry,
		StrategyAttempts: attempts,
		PagesTotal:       pages,
		ItemsTotal:       items,
		DetailFetches:    details,
		ItemsDropped:     dropped,
	}
}
