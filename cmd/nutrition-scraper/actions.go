package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/maltedev/nutrition-scraper/internal/app"
	"github.com/maltedev/nutrition-scraper/internal/browser"
	"github.com/maltedev/nutrition-scraper/internal/config"
	"github.com/maltedev/nutrition-scraper/internal/logger"
	"github.com/maltedev/nutrition-scraper/internal/models"
	"github.com/maltedev/nutrition-scraper/internal/parser"
	"github.com/maltedev/nutrition-scraper/internal/resolver"
	"github.com/maltedev/nutrition-scraper/internal/scraper"
	"github.com/maltedev/nutrition-scraper/internal/storage"
)

func loadConfig(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}

	level := cfg.Logging.Level
	if c.Bool("quiet") {
		level = "error"
	}
	// stdout carries command output, logs go to stderr
	log := logger.NewWithWriter(c.App.ErrWriter, level, cfg.Logging.Format)

	return cfg, log, nil
}

func RunAction(c *cli.Context) error {
	cfg, log, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, runErr := a.Driver.Run(ctx)

	if a.Relay != nil {
		published, err := a.Relay.Flush(ctx)
		if err != nil {
			log.Error("failed to relay events", "error", err)
		} else {
			log.Info("relayed events", "count", published)
		}
	}

	if summary != nil {
		enc := yaml.NewEncoder(c.App.Writer)
		if err := enc.Encode(summary); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
		enc.Close()
	}

	return runErr
}

func ExtractAction(c *cli.Context) error {
	cfg, log, err := loadConfig(c)
	if err != nil {
		return err
	}

	html, err := os.ReadFile(c.String("html"))
	if err != nil {
		return fmt.Errorf("failed to read page: %w", err)
	}

	url := c.String("url")
	session := browser.NewSnapshotSession(map[string]string{url: string(html)})
	defer session.Close()

	page, err := session.NewPage(c.Context)
	if err != nil {
		return err
	}

	extractor := scraper.NewProductExtractor(scraper.DefaultSelectors(), parser.NewNutritionParser(), cfg.Pipeline.NavigationTimeout, log)
	product, err := extractor.Extract(c.Context, page, url)
	if err != nil {
		return err
	}

	if dir := c.String("output-dir"); dir != "" {
		store := storage.NewJSONStore(dir)
		if err := store.Save(c.Context, product); err != nil {
			return err
		}
		log.Info("saved product", "path", store.Path(product.Name))
	}

	return writeJSON(c.App.Writer, product)
}

type parseOutput struct {
	Servings  models.ServingInfo `json:"Servings"`
	Nutrients []models.Nutrient  `json:"Nutrients"`
}

func ParseAction(c *cli.Context) error {
	var r io.Reader = c.App.Reader
	if name := c.Args().First(); name != "" && name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", name, err)
		}
		defer f.Close()
		r = f
	}

	text, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read nutrition text: %w", err)
	}

	servings, nutrients := parser.NewNutritionParser().Parse(string(text))
	return writeJSON(c.App.Writer, parseOutput{Servings: servings, Nutrients: nutrients})
}

func ResolveAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one tracking URL is required")
	}

	r := resolver.New(c.String("prefix"))
	for _, arg := range c.Args().Slice() {
		if resolved, ok := r.Resolve(arg); ok {
			fmt.Fprintln(c.App.Writer, resolved)
		}
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}
