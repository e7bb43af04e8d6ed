package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/nutrition-scraper/internal/api"
	"github.com/maltedev/nutrition-scraper/internal/app"
	"github.com/maltedev/nutrition-scraper/internal/config"
	"github.com/maltedev/nutrition-scraper/internal/logger"
	"github.com/maltedev/nutrition-scraper/internal/parser"
	"github.com/maltedev/nutrition-scraper/internal/resolver"
)

func main() {
	configPath := flag.String("config", os.Getenv("SCRAPER_CONFIG"), "YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, *configPath)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// run serves the API until ctx is cancelled or the listener fails. Every
// resource it opens is released before it returns.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := app.New(ctx, cfg, log, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()

	var stats api.OutboxStats
	if a.Relay != nil {
		stats = a.Relay
		go func() {
			if err := a.Relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("relay stopped with error", "error", err)
			}
		}()
	}

	handlers := api.NewHandlers(a.Driver, parser.NewNutritionParser(), resolver.New(cfg.Pipeline.ProductURLPrefix), stats, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handlers, []string{"http://localhost:*", "https://localhost:*"}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	}()

	log.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info("server stopped")
	return nil
}
