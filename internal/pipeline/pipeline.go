package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/nutrition-scraper/internal/browser"
	"github.com/maltedev/nutrition-scraper/internal/models"
	"github.com/maltedev/nutrition-scraper/internal/parser"
	"github.com/maltedev/nutrition-scraper/internal/resolver"
	"github.com/maltedev/nutrition-scraper/internal/scraper"
)

var ErrSearchNavigation = errors.New("search page navigation failed")

const (
	StageExtract = "extract"
	StagePersist = "persist"
)

// Config carries the run parameters the Driver is built with.
type Config struct {
	SearchURL         string
	ProductCap        int
	NavigationTimeout time.Duration
	ProductURLPrefix  string
}

// SessionOpener acquires the browser session a run owns.
type SessionOpener interface {
	Open(ctx context.Context) (browser.Session, error)
}

// Sink receives every extracted product.
type Sink interface {
	Save(ctx context.Context, product *models.ProductDetails) error
}

// Tracker records the outcome of each resolved URL.
type Tracker interface {
	AddBatch(urls []string) error
	MarkCompleted(url string) error
	MarkFailed(url string, cause error) error
}

type Failure struct {
	URL   string `json:"url" yaml:"url"`
	Stage string `json:"stage" yaml:"stage"`
	Error string `json:"error" yaml:"error"`
}

type RunSummary struct {
	RunID      string    `json:"runId" yaml:"run_id"`
	StartedAt  time.Time `json:"startedAt" yaml:"started_at"`
	FinishedAt time.Time `json:"finishedAt" yaml:"finished_at"`
	Discovered int       `json:"discovered" yaml:"discovered"`
	Resolved   int       `json:"resolved" yaml:"resolved"`
	Saved      int       `json:"saved" yaml:"saved"`
	Failed     int       `json:"failed" yaml:"failed"`
	Failures   []Failure `json:"failures" yaml:"failures"`
}

type Option func(*Driver)

func WithSelectors(selectors scraper.Selectors) Option {
	return func(d *Driver) { d.selectors = selectors }
}

func WithParser(p parser.Parser) Option {
	return func(d *Driver) { d.parser = p }
}

func WithTracker(t Tracker) Option {
	return func(d *Driver) { d.tracker = t }
}

// Driver runs one search: listing, resolution, then extraction and
// persistence of each product over a single page.
type Driver struct {
	cfg       Config
	opener    SessionOpener
	sinks     []Sink
	tracker   Tracker
	selectors scraper.Selectors
	parser    parser.Parser

	resolver  *resolver.Resolver
	listing   *scraper.ListingExtractor
	extractor *scraper.ProductExtractor
	logger    *slog.Logger
}

func NewDriver(cfg Config, opener SessionOpener, sinks []Sink, logger *slog.Logger, opts ...Option) *Driver {
	if cfg.ProductCap <= 0 {
		cfg.ProductCap = scraper.DefaultProductCap
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = scraper.DefaultNavigationTimeout
	}

	d := &Driver{
		cfg:       cfg,
		opener:    opener,
		sinks:     sinks,
		selectors: scraper.DefaultSelectors(),
		parser:    parser.NewNutritionParser(),
		logger:    logger.With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.resolver = resolver.New(cfg.ProductURLPrefix)
	d.listing = scraper.NewListingExtractor(d.selectors, cfg.ProductCap, logger)
	d.extractor = scraper.NewProductExtractor(d.selectors, d.parser, cfg.NavigationTimeout, logger)

	return d
}

// Run executes one pipeline pass. It fails only when the session, the page or
// the search navigation fails; product failures are listed in the summary.
// The session is closed exactly once however Run returns.
func (d *Driver) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		Failures:  make([]Failure, 0),
	}
	logger := d.logger.With("runId", summary.RunID)
	defer func() { summary.FinishedAt = time.Now() }()

	session, err := d.opener.Open(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to open browser session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Error("failed to close browser session", "error", err)
		}
	}()

	page, err := session.NewPage(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	logger.Info("navigating to search page", "url", d.cfg.SearchURL)
	if err := page.Goto(ctx, d.cfg.SearchURL, d.cfg.NavigationTimeout); err != nil {
		return summary, fmt.Errorf("%w: %w", ErrSearchNavigation, err)
	}

	links, err := d.listing.ExtractProductURLs(ctx, page)
	if err != nil {
		return summary, fmt.Errorf("failed to extract listing: %w", err)
	}
	summary.Discovered = len(links)

	urls := d.resolver.ResolveAll(links)
	summary.Resolved = len(urls)
	logger.Info("resolved product urls", "discovered", summary.Discovered, "resolved", summary.Resolved)

	if d.tracker != nil {
		if err := d.tracker.AddBatch(urls); err != nil {
			logger.Warn("failed to track product urls", "error", err)
		}
	}

	for i, url := range urls {
		if err := ctx.Err(); err != nil {
			logger.Warn("run cancelled", "remaining", len(urls)-i)
			d.finish(logger, summary)
			return summary, err
		}
		d.processProduct(ctx, logger, page, url, summary)
	}

	d.finish(logger, summary)
	return summary, nil
}

func (d *Driver) processProduct(ctx context.Context, logger *slog.Logger, page browser.Page, url string, summary *RunSummary) {
	logger.Info("extracting product", "url", url)

	product, err := d.extractor.Extract(ctx, page, url)
	if err != nil {
		d.fail(logger, summary, url, StageExtract, err)
		return
	}

	for _, sink := range d.sinks {
		if err := sink.Save(ctx, product); err != nil {
			d.fail(logger, summary, url, StagePersist, err)
			return
		}
	}

	summary.Saved++
	logger.Info("saved product", "url", url, "name", product.Name)

	if d.tracker != nil {
		if err := d.tracker.MarkCompleted(url); err != nil {
			logger.Warn("failed to track product", "url", url, "error", err)
		}
	}
}

func (d *Driver) fail(logger *slog.Logger, summary *RunSummary, url, stage string, err error) {
	summary.Failed++
	summary.Failures = append(summary.Failures, Failure{URL: url, Stage: stage, Error: err.Error()})
	logger.Error("product failed", "url", url, "stage", stage, "error", err)

	if d.tracker != nil {
		if err := d.tracker.MarkFailed(url, err); err != nil {
			logger.Warn("failed to track product", "url", url, "error", err)
		}
	}
}

func (d *Driver) finish(logger *slog.Logger, summary *RunSummary) {
	logger.Info("run finished",
		"discovered", summary.Discovered,
		"resolved", summary.Resolved,
		"saved", summary.Saved,
		"failed", summary.Failed,
	)
}
