package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maltedev/nutrition-scraper/internal/browser"
)

// ListingExtractor collects product links from a search results page.
type ListingExtractor struct {
	selectors Selectors
	limit     int
	logger    *slog.Logger
}

func NewListingExtractor(selectors Selectors, limit int, logger *slog.Logger) *ListingExtractor {
	if limit <= 0 {
		limit = DefaultProductCap
	}
	return &ListingExtractor{
		selectors: selectors,
		limit:     limit,
		logger:    logger.With("component", "listing_extractor"),
	}
}

// ExtractProductURLs returns the href of the first anchor in each of the
// first limit listing items, in document order. Items without an anchor are
// skipped; they still count toward the limit.
func (l *ListingExtractor) ExtractProductURLs(ctx context.Context, page browser.Page) ([]string, error) {
	items, err := page.QuerySelectorAll(l.selectors.ListingItem)
	if err != nil {
		return nil, fmt.Errorf("failed to find listing items: %w", err)
	}

	l.logger.Info("found listing items", "count", len(items))

	if len(items) > l.limit {
		items = items[:l.limit]
	}

	urls := make([]string, 0, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return urls, err
		}

		link, err := item.QuerySelector(l.selectors.ListingLink)
		if err != nil {
			l.logger.Warn("failed to query listing link", "index", i, "error", err)
			continue
		}
		if link == nil {
			continue
		}

		href, err := link.GetAttribute("href")
		if err != nil {
			l.logger.Warn("failed to read listing href", "index", i, "error", err)
			continue
		}
		if href == "" {
			continue
		}

		urls = append(urls, href)
	}

	l.logger.Info("extracted listing urls", "count", len(urls))

	return urls, nil
}
