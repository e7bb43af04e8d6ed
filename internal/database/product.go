package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/maltedev/nutrition-scraper/internal/models"
)

var ErrProductNotFound = errors.New("product not found")

// ProductRepository stores the latest record per product URL.
type ProductRepository struct {
	db *DB
}

func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// UpsertWithTx inserts or replaces the record for product.URL inside tx.
func (r *ProductRepository) UpsertWithTx(ctx context.Context, tx pgx.Tx, product *models.ProductDetails) error {
	record, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}

	query := `
		INSERT INTO product_nutrition (url, name, upc, brand, price, record, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (url) DO UPDATE SET
			name = EXCLUDED.name,
			upc = EXCLUDED.upc,
			brand = EXCLUDED.brand,
			price = EXCLUDED.price,
			record = EXCLUDED.record,
			scraped_at = EXCLUDED.scraped_at,
			updated_at = CURRENT_TIMESTAMP`

	_, err = tx.Exec(ctx, query,
		product.URL, product.Name, product.UPC, product.Brand, product.Price,
		record, product.ScrapedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}

	return nil
}

func (r *ProductRepository) GetByURL(ctx context.Context, url string) (*models.ProductDetails, error) {
	var record []byte
	err := r.db.pool.QueryRow(ctx,
		"SELECT record FROM product_nutrition WHERE url = $1", url).Scan(&record)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	var product models.ProductDetails
	if err := json.Unmarshal(record, &product); err != nil {
		return nil, fmt.Errorf("failed to decode product: %w", err)
	}
	return &product, nil
}
