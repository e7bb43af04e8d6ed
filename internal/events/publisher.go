package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/nutrition-scraper/internal/database"
	"github.com/maltedev/nutrition-scraper/internal/models"
)

type EventType string

const (
	// EventTypeProductExtracted is published after a product record is stored.
	EventTypeProductExtracted EventType = "PRODUCT_EXTRACTED"
)

// ProductExtractedPayload is the body of a PRODUCT_EXTRACTED event. The
// event id, type and product URL travel in the stream entry itself.
type ProductExtractedPayload struct {
	Name      string                 `json:"name"`
	UPC       *string                `json:"upc,omitempty"`
	Brand     *string                `json:"brand,omitempty"`
	Price     *string                `json:"price,omitempty"`
	Nutrients int                    `json:"nutrient_count"`
	HasTable  bool                   `json:"has_nutrition_table"`
	ScrapedAt time.Time              `json:"scraped_at"`
	Product   *models.ProductDetails `json:"product"`
}

type transactor interface {
	Transaction(ctx context.Context, fn func(pgx.Tx) error) error
}

type productWriter interface {
	UpsertWithTx(ctx context.Context, tx pgx.Tx, product *models.ProductDetails) error
}

type outboxWriter interface {
	InsertWithTx(ctx context.Context, tx pgx.Tx, event *database.OutboxEvent) error
}

// Publisher stores products and their outbox events in one transaction.
type Publisher struct {
	db       transactor
	products productWriter
	outbox   outboxWriter
	stream   string
	logger   *slog.Logger
}

func NewPublisher(db *database.DB, stream string, logger *slog.Logger) *Publisher {
	return newPublisher(db, database.NewProductRepository(db), database.NewOutboxRepository(db), stream, logger)
}

func newPublisher(db transactor, products productWriter, outbox outboxWriter, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = database.DefaultStream
	}
	return &Publisher{
		db:       db,
		products: products,
		outbox:   outbox,
		stream:   stream,
		logger:   logger.With("component", "event_publisher"),
	}
}

// Save upserts the product and queues a PRODUCT_EXTRACTED event. Either both
// are written or neither is.
func (p *Publisher) Save(ctx context.Context, product *models.ProductDetails) error {
	payload := &ProductExtractedPayload{
		Name:      product.Name,
		UPC:       product.UPC,
		Brand:     product.Brand,
		Price:     product.Price,
		Nutrients: len(product.Nutrition.Nutrients),
		HasTable:  product.Nutrition.Table != nil,
		ScrapedAt: product.ScrapedAt,
		Product:   product,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	event := &database.OutboxEvent{
		ID:         uuid.New(),
		ProductURL: product.URL,
		EventType:  string(EventTypeProductExtracted),
		Payload:    data,
		Stream:     p.stream,
	}

	err = p.db.Transaction(ctx, func(tx pgx.Tx) error {
		if err := p.products.UpsertWithTx(ctx, tx, product); err != nil {
			return err
		}
		return p.outbox.InsertWithTx(ctx, tx, event)
	})
	if err != nil {
		return fmt.Errorf("failed to publish product: %w", err)
	}

	p.logger.Info("product published to outbox", "event_id", event.ID, "url", product.URL)

	return nil
}
