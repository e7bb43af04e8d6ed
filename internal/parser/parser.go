package parser

import (
	"github.com/maltedev/nutrition-scraper/internal/models"
)

type Parser interface {
	Parse(text string) (models.ServingInfo, []models.Nutrient)
}
