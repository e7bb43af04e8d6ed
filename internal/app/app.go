package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/nutrition-scraper/internal/browser"
	"github.com/maltedev/nutrition-scraper/internal/config"
	"github.com/maltedev/nutrition-scraper/internal/database"
	"github.com/maltedev/nutrition-scraper/internal/events"
	"github.com/maltedev/nutrition-scraper/internal/pipeline"
	"github.com/maltedev/nutrition-scraper/internal/storage"
)

// App holds the pipeline and the optional database and relay built from a
// Config. Close releases whatever was opened.
type App struct {
	Driver *pipeline.Driver
	Store  *storage.JSONStore
	Ledger *storage.LinkLedger
	Relay  *database.Relay

	db     *database.DB
	redis  *redis.Client
	logger *slog.Logger
}

func BrowserOptions(cfg config.BrowserConfig) *browser.Options {
	opts := browser.DefaultOptions()
	opts.CDPEndpoint = cfg.CDPEndpoint
	opts.Headless = cfg.Headless
	opts.Timeout = cfg.Timeout
	opts.ViewportWidth = cfg.ViewportWidth
	opts.ViewportHeight = cfg.ViewportHeight
	opts.AcceptLanguage = cfg.AcceptLanguage
	opts.TimezoneID = cfg.TimezoneID
	opts.Locale = cfg.Locale
	opts.ProxyServer = cfg.ProxyServer
	if cfg.UserAgent != "" {
		opts.UserAgent = cfg.UserAgent
	}
	return opts
}

func PipelineConfig(cfg config.PipelineConfig) pipeline.Config {
	return pipeline.Config{
		SearchURL:         cfg.SearchURL,
		ProductCap:        cfg.ProductCap,
		NavigationTimeout: cfg.NavigationTimeout,
		ProductURLPrefix:  cfg.ProductURLPrefix,
	}
}

// New builds the sinks in order: the JSON store, then the database
// publisher when enabled. opener overrides the playwright launcher when set.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opener pipeline.SessionOpener) (*App, error) {
	a := &App{
		Store:  storage.NewJSONStore(cfg.Pipeline.OutputDir),
		logger: logger,
	}
	sinks := []pipeline.Sink{a.Store}

	var opts []pipeline.Option
	if cfg.Pipeline.LedgerFile != "" {
		ledger, err := storage.NewLinkLedger(cfg.Pipeline.LedgerFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open link ledger: %w", err)
		}
		a.Ledger = ledger
		opts = append(opts, pipeline.WithTracker(ledger))
	}

	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			DSN:      cfg.Database.DSN(),
			MaxConns: int32(cfg.Database.MaxConns),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.db = db

		if err := db.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}

		sinks = append(sinks, events.NewPublisher(db, cfg.Redis.Stream, logger))
	}

	if cfg.Redis.Enabled && a.db != nil {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redis = client
		a.Relay = database.NewRelay(database.NewOutboxRepository(a.db), client, logger, database.RelayConfig{})
	}

	if opener == nil {
		opener = browser.NewLauncher(BrowserOptions(cfg.Browser))
	}
	a.Driver = pipeline.NewDriver(PipelineConfig(cfg.Pipeline), opener, sinks, logger, opts...)

	return a, nil
}

func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", "error", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
