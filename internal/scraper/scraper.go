package scraper

import (
	"errors"
	"time"
)

var (
	ErrNavigation   = errors.New("navigation failed")
	ErrInvalidInput = errors.New("invalid input")
)

const (
	DefaultProductCap        = 10
	DefaultNavigationTimeout = 2 * time.Minute
)

// Selectors locates the listing and product page elements of one retailer.
type Selectors struct {
	ListingItem    string
	ListingLink    string
	Metadata       string
	Title          string
	Price          string
	NutritionText  string
	NutritionTable string
	TableRow       string
	TableCell      string
}

func DefaultSelectors() Selectors {
	return Selectors{
		ListingItem:    "div.mb0.ph1",
		ListingLink:    "a",
		Metadata:       `script[type="application/ld+json"]`,
		Title:          "h1.prod-ProductTitle.prod-productTitle-buyBox.font-bold",
		Price:          "span.price-group span.price-characteristic",
		NutritionText:  "#maincontent > section > main > div.flex.undefined.flex-column.h-100 > div:nth-child(2) > div > div.w_aoqv.w_wRee.w_p0Zv > div > div > section:nth-child(4) > section > div.w_rNem.expand-collapse-content > div",
		NutritionTable: "div.w_wOcC.w_EjQC > section > table",
		TableRow:       "tr",
		TableCell:      "td",
	}
}
