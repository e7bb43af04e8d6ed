package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/nutrition-scraper/internal/browser"
	"github.com/maltedev/nutrition-scraper/internal/models"
	"github.com/maltedev/nutrition-scraper/internal/parser"
)

// ProductExtractor visits a product page and merges every field it can find
// into one ProductDetails record.
type ProductExtractor struct {
	selectors Selectors
	parser    parser.Parser
	timeout   time.Duration
	logger    *slog.Logger
}

// NewProductExtractor creates a new product extractor
func NewProductExtractor(selectors Selectors, p parser.Parser, timeout time.Duration, logger *slog.Logger) *ProductExtractor {
	if p == nil {
		p = parser.NewNutritionParser()
	}
	if timeout <= 0 {
		timeout = DefaultNavigationTimeout
	}
	return &ProductExtractor{
		selectors: selectors,
		parser:    p,
		timeout:   timeout,
		logger:    logger.With("component", "product_extractor"),
	}
}

// Extract navigates page to url and builds the product record. Only a
// navigation failure is an error; missing elements leave fields absent.
//
// Name precedence: the structured metadata name is written first and the page
// title, when the title element exists, replaces it.
func (pe *ProductExtractor) Extract(ctx context.Context, page browser.Page, url string) (*models.ProductDetails, error) {
	pe.logger.Info("extracting product details", "url", url)

	if err := page.Goto(ctx, url, pe.timeout); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNavigation, err)
	}

	product := models.NewProductDetails(url)

	pe.extractMetadata(page, product)
	pe.extractTitle(page, product)
	pe.extractPrice(page, product)
	pe.extractNutritionText(page, product)
	pe.extractNutritionTable(page, product)

	if product.Name == "" {
		product.Name = models.UnknownProductName
	}

	tableRows := 0
	if product.Nutrition.Table != nil {
		tableRows = product.Nutrition.Table.Len()
	}
	pe.logger.Info("extracted product details",
		"url", url,
		"name", product.Name,
		"hasPrice", product.Price != nil,
		"nutrients", len(product.Nutrition.Nutrients),
		"tableRows", tableRows,
	)

	return product, nil
}

func (pe *ProductExtractor) extractMetadata(page browser.Page, product *models.ProductDetails) {
	text, ok := pe.queryText(page, pe.selectors.Metadata)
	if !ok {
		return
	}

	meta, err := parseMetadata(text)
	if err != nil {
		pe.logger.Warn("failed to parse structured metadata", "url", product.URL, "error", err)
		return
	}

	product.UPC = metadataString(meta["gtin13"])
	product.Brand = metadataBrand(meta["brand"])
	product.Image = metadataString(meta["image"])
	product.Description = metadataString(meta["description"])
	if name := metadataString(meta["name"]); name != nil {
		product.Name = *name
	}
}

func (pe *ProductExtractor) extractTitle(page browser.Page, product *models.ProductDetails) {
	if title, ok := pe.queryText(page, pe.selectors.Title); ok {
		product.Name = strings.TrimSpace(title)
	}
}

func (pe *ProductExtractor) extractPrice(page browser.Page, product *models.ProductDetails) {
	if price, ok := pe.queryText(page, pe.selectors.Price); ok {
		product.Price = models.StringPtr(strings.TrimSpace(price))
	}
}

func (pe *ProductExtractor) extractNutritionText(page browser.Page, product *models.ProductDetails) {
	text, _ := pe.queryText(page, pe.selectors.NutritionText)

	serving, nutrients := pe.parser.Parse(text)
	product.Servings = serving
	product.Nutrition.Nutrients = nutrients
}

func (pe *ProductExtractor) extractNutritionTable(page browser.Page, product *models.ProductDetails) {
	table := pe.query(page, pe.selectors.NutritionTable)
	if table == nil {
		return
	}

	rows, err := table.QuerySelectorAll(pe.selectors.TableRow)
	if err != nil {
		pe.logger.Warn("failed to query nutrition table rows", "error", err)
		return
	}

	nutrition := models.NewNutritionTable()
	for _, row := range rows {
		cells, err := row.QuerySelectorAll(pe.selectors.TableCell)
		if err != nil || len(cells) < 2 {
			continue
		}

		key, err := cells[0].TextContent()
		if err != nil {
			continue
		}
		value, err := cells[1].TextContent()
		if err != nil {
			continue
		}

		nutrition.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	product.Nutrition.Table = nutrition
}

// query returns nil when the element is absent or the lookup fails.
func (pe *ProductExtractor) query(page browser.Page, selector string) browser.Element {
	el, err := page.QuerySelector(selector)
	if err != nil {
		pe.logger.Debug("element lookup failed", "selector", selector, "error", err)
		return nil
	}
	return el
}

func (pe *ProductExtractor) queryText(page browser.Page, selector string) (string, bool) {
	el := pe.query(page, selector)
	if el == nil {
		return "", false
	}

	text, err := el.TextContent()
	if err != nil {
		pe.logger.Debug("failed to read element text", "selector", selector, "error", err)
		return "", false
	}
	return text, true
}

// parseMetadata decodes a linked-data block. A top-level array yields its
// first object.
func parseMetadata(text string) (map[string]json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "[") {
		var list []map[string]json.RawMessage
		if err := json.Unmarshal([]byte(text), &list); err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return map[string]json.RawMessage{}, nil
		}
		return list[0], nil
	}

	var meta map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// metadataString reads a string, a number, or the first entry of an array.
func metadataString(raw json.RawMessage) *string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		v := n.String()
		return &v
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return metadataString(list[0])
	}

	return nil
}

// metadataBrand accepts {"name": "..."} or a plain string.
func metadataBrand(raw json.RawMessage) *string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil && obj != nil {
		return metadataString(obj["name"])
	}
	return metadataString(raw)
}
