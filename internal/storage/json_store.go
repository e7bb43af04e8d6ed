package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/maltedev/nutrition-scraper/internal/models"
)

var ErrEmptyName = errors.New("product name is required")

var filenameReplacer = strings.NewReplacer(" ", "_", "/", "_", "\\", "_")

// JSONStore writes one JSON document per product into a directory.
type JSONStore struct {
	dir string
}

func NewJSONStore(dir string) *JSONStore {
	return &JSONStore{dir: dir}
}

func (s *JSONStore) Dir() string {
	return s.dir
}

// Filename derives the document name from a product name.
func Filename(name string) string {
	return filenameReplacer.Replace(name) + ".json"
}

// Path returns where the record for name is written.
func (s *JSONStore) Path(name string) string {
	return filepath.Join(s.dir, Filename(name))
}

// Save writes the record, replacing any earlier record with the same name.
func (s *JSONStore) Save(ctx context.Context, product *models.ProductDetails) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if product == nil || product.Name == "" {
		return ErrEmptyName
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(product, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".product-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to set product file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write product: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write product: %w", err)
	}

	if err := os.Rename(tmpName, s.Path(product.Name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to save product: %w", err)
	}

	return nil
}

// Load reads a previously saved record by product name.
func (s *JSONStore) Load(name string) (*models.ProductDetails, error) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return nil, err
	}

	var product models.ProductDetails
	if err := json.Unmarshal(data, &product); err != nil {
		return nil, fmt.Errorf("failed to decode product: %w", err)
	}
	return &product, nil
}
