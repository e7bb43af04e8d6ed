package parser

import (
	"testing"

	"github.com/maltedev/nutrition-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(s string) *string { return &s }

func TestParseNutrition(t *testing.T) {
	parser := NewNutritionParser()

	tests := []struct {
		name      string
		text      string
		serving   models.ServingInfo
		nutrients []models.Nutrient
	}{
		{
			name:    "Serving header and two nutrients",
			text:    "Amount per serving\n2 cup\nSodium 150 mg\nTotalFat 5g\n",
			serving: models.ServingInfo{ServingSize: "2", ServingSizeUnit: "cup", TotalServings: 1},
			nutrients: []models.Nutrient{
				{Name: "Sodium", Amount: 150, Unit: unit("mg")},
				{Name: "TotalFat", Amount: 5, Unit: unit("g")},
			},
		},
		{
			name:      "Empty text",
			text:      "",
			serving:   models.ServingInfo{},
			nutrients: []models.Nutrient{},
		},
		{
			name:    "No serving header",
			text:    "Calories 110\nProtein 3g",
			serving: models.ServingInfo{},
			nutrients: []models.Nutrient{
				{Name: "Calories", Amount: 110},
				{Name: "Protein", Amount: 3, Unit: unit("g")},
			},
		},
		{
			name:    "Decimal amounts and surrounding whitespace",
			text:    "   Amount per serving   \n 1.5 oz (42g)\n  Saturated Fat 0.5g  \n",
			serving: models.ServingInfo{ServingSize: "1.5", ServingSizeUnit: "oz", TotalServings: 1},
			nutrients: []models.Nutrient{
				{Name: "1", Amount: 5},
				{Name: "Saturated", Amount: 0.5, Unit: unit("g")},
			},
		},
		{
			name:    "Trailing percentage leaves unit absent",
			text:    "Total Carbohydrate 37g 13%",
			serving: models.ServingInfo{},
			nutrients: []models.Nutrient{
				{Name: "Total", Amount: 37},
			},
		},
		{
			name:      "Header on last line keeps serving empty",
			text:      "Nutrition Facts\nAmount per serving",
			serving:   models.ServingInfo{},
			nutrients: []models.Nutrient{},
		},
		{
			name:      "Serving line without digits",
			text:      "Amount per serving\nsee package",
			serving:   models.ServingInfo{ServingSizeUnit: "see", TotalServings: 1},
			nutrients: []models.Nutrient{},
		},
		{
			name:    "Later header overwrites serving",
			text:    "Amount per serving\n1 cup\nAmount per serving\n2 tbsp",
			serving: models.ServingInfo{ServingSize: "2", ServingSizeUnit: "tbsp", TotalServings: 1},
			nutrients: []models.Nutrient{},
		},
		{
			name:    "Duplicate names are kept",
			text:    "Sugars 4g\nSugars 2g",
			serving: models.ServingInfo{},
			nutrients: []models.Nutrient{
				{Name: "Sugars", Amount: 4, Unit: unit("g")},
				{Name: "Sugars", Amount: 2, Unit: unit("g")},
			},
		},
		{
			name:      "Unmatched lines are skipped",
			text:      "Nutrition Facts\n\n%Daily Value*\n",
			serving:   models.ServingInfo{},
			nutrients: []models.Nutrient{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serving, nutrients := parser.Parse(tt.text)
			assert.Equal(t, tt.serving, serving)
			require.NotNil(t, nutrients)
			assert.Equal(t, tt.nutrients, nutrients)
		})
	}
}

func TestParseNutritionOrderPreserved(t *testing.T) {
	parser := NewNutritionParser()

	_, nutrients := parser.Parse("Fat 1g\nSodium 2mg\nFiber 3g")

	require.Len(t, nutrients, 3)
	assert.Equal(t, "Fat", nutrients[0].Name)
	assert.Equal(t, "Sodium", nutrients[1].Name)
	assert.Equal(t, "Fiber", nutrients[2].Name)
}

func TestParseNutritionIdempotent(t *testing.T) {
	parser := NewNutritionParser()
	text := "Amount per serving\n8 fl oz\nCalories 150\nTotal Fat 8g\nSodium 120mg"

	s1, n1 := parser.Parse(text)
	s2, n2 := parser.Parse(text)

	assert.Equal(t, s1, s2)
	assert.Equal(t, n1, n2)
}

func TestParseNutritionTotal(t *testing.T) {
	parser := NewNutritionParser()

	inputs := []string{"", "\n", "\n\n\n", "Amount per serving", "Amount per serving\n", "123", "ünïcödé 5 g", "\t\r\n  "}
	for _, input := range inputs {
		assert.NotPanics(t, func() {
			_, nutrients := parser.Parse(input)
			assert.NotNil(t, nutrients)
		}, "input %q", input)
	}
}
