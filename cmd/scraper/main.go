package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/meliscout/meli-scraper/internal/analytics"
	"github.com/meliscout/meli-scraper/internal/browser"
	"github.com/meliscout/meli-scraper/internal/config"
	"github.com/meliscout/meli-scraper/internal/database"
	"github.com/meliscout/meli-scraper/internal/fetch"
	"github.com/meliscout/meli-scraper/internal/models"
	"github.com/meliscout/meli-scraper/internal/scraper"
	"github.com/meliscout/meli-scraper/internal/storage"
)

func main() {
	var (
		keyword   = flag.String("keyword", "", "Search keyword to scrape")
		url       = flag.String("url", "", "Listing URL to scrape instead of a keyword")
		maxPages  = flag.Int("max-pages", 0, "Maximum listing pages to walk (default from env)")
		pageDelay = flag.Duration("page-delay", 0, "Delay between listing pages (default from env)")
		out       = flag.String("out", "", "Write results as JSON to this file instead of stdout")
		saveDB    = flag.Bool("save-db", false, "Also upsert results into Postgres (DB_* env vars)")
		report    = flag.Bool("report", false, "Print an aggregate report instead of raw items")
		headless  = flag.Bool("headless", true, "Run the browser in headless mode")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.Logging.Level),
	}))
	slog.SetDefault(logger)

	if *keyword == "" && *url == "" {
		logger.Error("either -keyword or -url is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received, finishing with partial results")
		cancel()
	}()

	identity := fetch.NewRandomSelector(cfg.Scraper.UserAgents)
	fetcher := fetch.NewClient(identity, fetch.Options{
		Timeout:     cfg.Scraper.FetchTimeout,
		MaxAttempts: cfg.Scraper.MaxRetries,
		BaseDelay:   cfg.Scraper.RetryDelay,
	})

	renderer := browser.New(identity, logger)
	renderer.SetHeadless(*headless && cfg.Browser.Headless)

	engine := scraper.NewService(fetcher, renderer, logger)

	opts := scraper.Options{
		MaxPages:     cfg.Scraper.MaxPages,
		PerPageDelay: cfg.Scraper.PerPageDelay,
		DetailDelay:  cfg.Scraper.DetailDelay,
	}
	if *maxPages > 0 {
		opts.MaxPages = *maxPages
	}
	if *pageDelay > 0 {
		opts.PerPageDelay = *pageDelay
	}

	start := time.Now()
	query := *keyword
	var items []models.Item
	if *url != "" {
		query = *url
		items = engine.ScrapeByURL(ctx, *url, opts)
	} else {
		items = engine.ScrapeByKeyword(ctx, *keyword, opts)
	}
	logger.Info("scrape finished", "query", query, "items", len(items), "took", time.Since(start).Round(time.Millisecond))

	if *saveDB {
		db, err := database.New(ctx, cfg.Database.DSN())
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			logger.Error("migration failed", "error", err)
			os.Exit(1)
		}
		stored, err := db.SaveItems(ctx, items, query)
		if err != nil {
			logger.Error("failed to save items", "error", err)
			os.Exit(1)
		}
		logger.Info("items stored", "count", stored)
	}

	if *out != "" {
		if err := storage.Save(*out, query, items); err != nil {
			logger.Error("failed to save results", "error", err)
			os.Exit(1)
		}
		logger.Info("results saved", "path", *out)
		return
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if *report {
		enc.Encode(analytics.Build(items))
		return
	}
	enc.Encode(storage.Document{Keyword: query, Count: len(items), Items: items})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
