package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/meliscout/meli-scraper/internal/api"
	"github.com/meliscout/meli-scraper/internal/browser"
	"github.com/meliscout/meli-scraper/internal/config"
	"github.com/meliscout/meli-scraper/internal/database"
	"github.com/meliscout/meli-scraper/internal/events"
	"github.com/meliscout/meli-scraper/internal/fetch"
	"github.com/meliscout/meli-scraper/internal/ingest"
	"github.com/meliscout/meli-scraper/internal/jobs"
	"github.com/meliscout/meli-scraper/internal/scraper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	identity := fetch.NewRandomSelector(cfg.Scraper.UserAgents)
	fetcher := fetch.NewClient(identity, fetch.Options{
		Timeout:     cfg.Scraper.FetchTimeout,
		MaxAttempts: cfg.Scraper.MaxRetries,
		BaseDelay:   cfg.Scraper.RetryDelay,
	})

	renderer := browser.New(identity, logger)
	renderer.SetHeadless(cfg.Browser.Headless)

	engine := scraper.NewService(fetcher, renderer, logger)

	baseOpts := scraper.Options{
		MaxPages:     cfg.Scraper.MaxPages,
		PerPageDelay: cfg.Scraper.PerPageDelay,
		DetailDelay:  cfg.Scraper.DetailDelay,
	}
	manager := jobs.NewManager(engine, baseOpts, cfg.Jobs.Workers, cfg.Jobs.MaxSize, logger)

	// Persistence and eventing are optional: the service still scrapes
	// when Postgres or Redis is not reachable.
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.New(ctx, cfg.Database.DSN())
		if err != nil {
			logger.Warn("database unavailable, results will not be persisted", "error", err)
		} else {
			defer db.Close()
			if err := db.Migrate(ctx); err != nil {
				logger.Error("migration failed", "error", err)
				os.Exit(1)
			}
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	var publisher *events.Publisher
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, events will not be published", "error", err)
	} else {
		publisher = events.NewPublisher(redisClient, cfg.Redis.Stream, logger)
	}

	var pusher *ingest.Client
	if cfg.Ingest.Endpoint != "" {
		pusher = ingest.NewClient(cfg.Ingest.Endpoint, cfg.Ingest.Token, logger)
	}

	manager.SetCompletionHook(func(ctx context.Context, job *jobs.Job) error {
		if db != nil {
			if _, err := db.SaveItems(ctx, job.Items, job.Query); err != nil {
				return err
			}
		}
		if pusher != nil {
			if err := pusher.Push(ctx, job.Items, job.Query); err != nil {
				return err
			}
		}
		if publisher != nil {
			if err := publisher.PublishScrapeCompleted(ctx, job.Query, job.Items); err != nil {
				return err
			}
		}
		return nil
	})

	manager.Start(ctx)
	defer manager.Stop()

	handlers := api.NewHandlers(manager, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handlers.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
		engine.Metrics().Registry,
		promhttp.HandlerOpts{},
	))
	r.Route("/api/v1", handlers.Routes)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
