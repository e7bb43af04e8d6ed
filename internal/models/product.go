package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// UnknownProductName is used when neither the page metadata nor the title
// element yields a product name. Persistence derives filenames from Name.
const UnknownProductName = "Unknown_Product"

// ServingInfo describes one declared serving on a nutrition label.
// The zero value marshals to {}.
type ServingInfo struct {
	ServingSize     string `json:"servingSize,omitempty"`
	ServingSizeUnit string `json:"servingSizeUnit,omitempty"`
	TotalServings   int    `json:"totalServings,omitempty"`
}

func (s ServingInfo) IsEmpty() bool {
	return s == ServingInfo{}
}

// Nutrient is one line item of a nutrition panel, e.g. "Sodium 150mg".
type Nutrient struct {
	Name   string  `json:"Name"`
	Amount float64 `json:"Amount"`
	Unit   *string `json:"Unit"`
}

// Nutrition groups both nutrition representations found on a product page.
// Nutrients comes from the free-text panel, Table from the structured table.
type Nutrition struct {
	Nutrients []Nutrient      `json:"Nutrients"`
	Table     *NutritionTable `json:"Table"`
}

// ProductDetails is the merged record written for each product.
type ProductDetails struct {
	URL         string      `json:"URL"`
	UPC         *string     `json:"UPC"`
	Name        string      `json:"Name"`
	Brand       *string     `json:"Brand"`
	Image       *string     `json:"Image"`
	Description *string     `json:"Description"`
	Price       *string     `json:"Price"`
	Servings    ServingInfo `json:"Servings"`
	Nutrition   Nutrition   `json:"Nutrition"`
	ScrapedAt   time.Time   `json:"ScrapedAt"`
}

func NewProductDetails(url string) *ProductDetails {
	return &ProductDetails{
		URL: url,
		Nutrition: Nutrition{
			Nutrients: make([]Nutrient, 0),
		},
		ScrapedAt: time.Now(),
	}
}

// NutritionTable maps row labels to row values. Keys are unique and keep the
// position of their first insertion; a repeated label overwrites the value.
type NutritionTable struct {
	keys   []string
	values map[string]string
}

func NewNutritionTable() *NutritionTable {
	return &NutritionTable{values: make(map[string]string)}
}

func (t *NutritionTable) Set(key, value string) {
	if t.values == nil {
		t.values = make(map[string]string)
	}
	if _, exists := t.values[key]; !exists {
		t.keys = append(t.keys, key)
	}
	t.values[key] = value
}

func (t *NutritionTable) Get(key string) (string, bool) {
	v, ok := t.values[key]
	return v, ok
}

func (t *NutritionTable) Keys() []string {
	keys := make([]string, len(t.keys))
	copy(keys, t.keys)
	return keys
}

func (t *NutritionTable) Len() int {
	return len(t.keys)
}

// MarshalJSON writes the table as a JSON object in row order.
func (t *NutritionTable) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range t.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(t.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping the order keys appear in.
func (t *NutritionTable) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("nutrition table must be a JSON object")
	}

	*t = NutritionTable{values: make(map[string]string)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return err
		}
		t.Set(key, value)
	}
	_, err = dec.Token()
	return err
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
