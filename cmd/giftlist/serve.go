package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/msawatzky/christmas-list/internal/api"
	"github.com/msawatzky/christmas-list/internal/auth"
	"github.com/msawatzky/christmas-list/internal/config"
	"github.com/msawatzky/christmas-list/internal/handlers"
	"github.com/msawatzky/christmas-list/internal/metrics"
	"github.com/msawatzky/christmas-list/internal/models"
	"github.com/msawatzky/christmas-list/internal/repository"
	"github.com/msawatzky/christmas-list/internal/repository/memory"
	"github.com/msawatzky/christmas-list/internal/repository/postgres"
	"github.com/msawatzky/christmas-list/internal/scraper"
	"github.com/msawatzky/christmas-list/internal/service"
	"github.com/msawatzky/christmas-list/internal/telegram"
	"github.com/msawatzky/christmas-list/internal/upload"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API, the Telegram bot and the metrics endpoint",
	Long: `serve runs until SIGINT or SIGTERM.

The Telegram bot starts only when TELEGRAM_TOKEN is set. Product lookups go
through ScrapingBee when SCRAPINGBEE_API_KEY is set and read the page
directly otherwise.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, l, err := setup()
	if err != nil {
		return err
	}
	l.Info("Starting gift list service...")

	roster, err := loadRoster(cfg.RosterPath, l)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	eg, egCtx := errgroup.WithContext(ctx)

	// Storage
	var items repository.ItemRepository
	switch cfg.StoreBackend {
	case config.StoreMemory:
		l.Warn("Using the in-memory store, lists are lost on restart")
		items = memory.NewItemRepository()
	default:
		db, err := config.NewDatabase(cfg.DatabaseURL, l)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Migrate(cfg.MigrationsPath); err != nil {
			return err
		}

		notifier := postgres.NewNotifier(cfg.DatabaseURL, l)
		items = postgres.NewItemRepository(db.DB, notifier)
		eg.Go(func() error {
			return notifier.Run(egCtx)
		})
	}

	m := metrics.New()
	svc := service.New(l, items, roster, m)
	sessions := auth.NewProvider(roster, cfg.SessionSecret, cfg.SessionTTL)

	// Outbound integrations
	client := &http.Client{Timeout: cfg.HTTPClientTimeout}
	var fetcher scraper.Fetcher = scraper.NewPageFetcher(client)
	if cfg.ScrapingBeeAPIKey != "" {
		fetcher = scraper.NewScrapingBee(cfg.ScrapingBeeAPIKey, cfg.ScrapingBeeURL, client)
	}
	products := scraper.New(fetcher, cfg.ScraperCacheTTL, l, m)
	l.WithField("backend", products.Backend()).Info("Product lookup configured")

	uploader := upload.New(upload.Config{
		CloudName:    cfg.CloudinaryCloudName,
		UploadPreset: cfg.CloudinaryUploadPreset,
		Folder:       cfg.CloudinaryFolder,
		MaxBytes:     cfg.UploadMaxBytes,
	}, client, l, m)
	if !uploader.Enabled() {
		l.Warn("Cloudinary is not configured, image uploads are disabled")
	}

	// HTTP servers
	apiServer := api.NewServer(svc, sessions, l,
		api.WithScraper(products),
		api.WithUploader(uploader),
		api.WithMetrics(m),
	)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", m.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.PrometheusPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(listen(httpServer, "HTTP", l))
	eg.Go(listen(metricsServer, "Metrics", l))
	eg.Go(func() error {
		<-egCtx.Done()
		l.Info("Shutting down HTTP servers...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(httpServer.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})

	// Telegram bot
	if cfg.TelegramToken != "" {
		bot, err := newTelegramBot(cfg.TelegramToken, svc, roster, products, l)
		if err != nil {
			return err
		}
		eg.Go(func() error {
			return bot.Start(egCtx)
		})
	} else {
		l.Info("No TELEGRAM_TOKEN set, the chat bot is disabled")
	}

	l.Info("Gift list service started successfully")

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	l.Info("Gift list service stopped")
	return nil
}

func listen(srv *http.Server, name string, l *logrus.Logger) func() error {
	return func() error {
		l.Infof("%s server listening on %s", name, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s server: %w", name, err)
		}
		return nil
	}
}

func newTelegramBot(token string, svc *service.Service, roster *auth.Roster, products *scraper.Scraper, l *logrus.Logger) (*telegram.Bot, error) {
	bot, err := telegram.NewBot(token, l)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	links := auth.NewLinks(roster)

	bot.RegisterCommand("start", handlers.NewStartHandler(links, l))
	bot.RegisterCommand("help", handlers.NewHelpHandler(l))
	bot.RegisterCommand("iam", handlers.NewIamHandler(links, l))

	// Own list
	bot.RegisterCommand("wish", handlers.NewWishAddHandler(svc, links, l))
	bot.RegisterCommand("mylist", handlers.NewMyListHandler(svc, links, l))
	bot.RegisterCommand("up", handlers.NewMoveHandler(svc, links, l, models.DirectionUp))
	bot.RegisterCommand("down", handlers.NewMoveHandler(svc, links, l, models.DirectionDown))

	// Everyone else's lists
	bot.RegisterCommand("others", handlers.NewOthersHandler(svc, links, l))
	bot.RegisterCommand("bought", handlers.NewPurchaseHandler(svc, links, l, true))
	bot.RegisterCommand("unbought", handlers.NewPurchaseHandler(svc, links, l, false))

	bot.RegisterCommand("fetch", handlers.NewFetchHandler(products, l))

	if err := bot.PublishCommands(handlers.Commands()...); err != nil {
		l.WithError(err).Warn("Failed to publish the command menu")
	}
	return bot, nil
}
