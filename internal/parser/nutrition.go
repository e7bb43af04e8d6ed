package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/maltedev/nutrition-scraper/internal/models"
)

// ServingHeader introduces the serving descriptor on the following line.
const ServingHeader = "Amount per serving"

// NutritionParser classifies the lines of a nutrition-facts panel. Matching is
// best effort: lines that fit neither the serving header nor the nutrient
// grammar are skipped.
type NutritionParser struct {
	nutrientPattern *regexp.Regexp
	sizePattern     *regexp.Regexp
	unitPattern     *regexp.Regexp
}

func NewNutritionParser() *NutritionParser {
	return &NutritionParser{
		// name, filler, amount, filler, optional unit at end of line
		nutrientPattern: regexp.MustCompile(`^(\w+).*?(\d+\.?\d*).*?(\w+)?$`),
		sizePattern:     regexp.MustCompile(`\d+\.?\d*`),
		unitPattern:     regexp.MustCompile(`[a-zA-Z]+`),
	}
}

// Parse returns the last declared serving and the nutrients in the order they
// appear. Empty text yields an empty serving and an empty, non-nil slice.
func (p *NutritionParser) Parse(text string) (models.ServingInfo, []models.Nutrient) {
	serving := models.ServingInfo{}
	nutrients := make([]models.Nutrient, 0)

	if text == "" {
		return serving, nutrients
	}

	lines := strings.Split(text, "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)

		if strings.HasPrefix(line, ServingHeader) {
			if i+1 < len(lines) {
				serving = p.parseServing(lines[i+1])
			}
			continue
		}

		if nutrient, ok := p.parseNutrient(line); ok {
			nutrients = append(nutrients, nutrient)
		}
	}

	return serving, nutrients
}

func (p *NutritionParser) parseServing(line string) models.ServingInfo {
	return models.ServingInfo{
		ServingSize:     p.sizePattern.FindString(line),
		ServingSizeUnit: p.unitPattern.FindString(line),
		TotalServings:   1,
	}
}

func (p *NutritionParser) parseNutrient(line string) (models.Nutrient, bool) {
	idx := p.nutrientPattern.FindStringSubmatchIndex(line)
	if idx == nil {
		return models.Nutrient{}, false
	}

	amount, err := strconv.ParseFloat(line[idx[4]:idx[5]], 64)
	if err != nil {
		return models.Nutrient{}, false
	}

	nutrient := models.Nutrient{
		Name:   line[idx[2]:idx[3]],
		Amount: amount,
	}
	if idx[6] >= 0 {
		nutrient.Unit = models.StringPtr(line[idx[6]:idx[7]])
	}

	return nutrient, true
}
