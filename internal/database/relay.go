package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var errInvalidPayload = errors.New("payload is not valid JSON")

// StreamWriter appends entries to a Redis stream.
type StreamWriter interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// EventStore is the outbox as seen by the relay.
type EventStore interface {
	Due(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) error
	CountByStatus(ctx context.Context, statuses ...DeliveryStatus) (int64, error)
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// Relay forwards queued product events from the outbox to Redis streams.
type Relay struct {
	events  EventStore
	streams StreamWriter
	cfg     RelayConfig
	logger  *slog.Logger
}

func NewRelay(events EventStore, streams StreamWriter, logger *slog.Logger, cfg RelayConfig) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Relay{
		events:  events,
		streams: streams,
		cfg:     cfg,
		logger:  logger.With("component", "relay"),
	}
}

// Start flushes immediately and then once per poll interval until ctx is
// done.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("relay started", "interval", r.cfg.PollInterval, "batch_size", r.cfg.BatchSize)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("relay flush failed", "error", err)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Flush delivers one batch of due events and reports how many reached the
// stream. A failed delivery is recorded on its event and does not stop the
// batch.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	due, err := r.events.Due(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load due events: %w", err)
	}

	delivered := 0
	for _, event := range due {
		logger := r.logger.With("event_id", event.ID, "url", event.ProductURL)

		if err := r.deliver(ctx, event); err != nil {
			logger.Warn("delivery failed", "attempt", event.Attempts+1, "error", err)
			if err := r.events.MarkFailed(ctx, event.ID, err); err != nil {
				logger.Error("failed to record delivery failure", "error", err)
			}
			continue
		}

		if err := r.events.MarkDelivered(ctx, event.ID); err != nil {
			// The entry is already on the stream; it will be sent again.
			logger.Error("failed to mark event delivered", "error", err)
			continue
		}

		logger.Debug("event delivered", "stream", event.Stream)
		delivered++
	}

	if delivered > 0 {
		r.logger.Info("relayed events", "delivered", delivered, "due", len(due))
	}
	return delivered, nil
}

func (r *Relay) deliver(ctx context.Context, event *OutboxEvent) error {
	if !json.Valid(event.Payload) {
		return errInvalidPayload
	}

	err := r.streams.XAdd(ctx, &redis.XAddArgs{
		Stream: event.Stream,
		Values: streamEntry(event),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

// streamEntry is the flat field set consumers read from the stream.
func streamEntry(event *OutboxEvent) map[string]interface{} {
	return map[string]interface{}{
		"event_id":    event.ID.String(),
		"event_type":  event.EventType,
		"product_url": event.ProductURL,
		"payload":     string(event.Payload),
		"created_at":  event.CreatedAt.UTC().Format(time.RFC3339Nano),
		"attempt":     strconv.Itoa(event.Attempts + 1),
	}
}

// GetPendingCount returns the number of events still waiting for delivery.
func (r *Relay) GetPendingCount(ctx context.Context) (int64, error) {
	return r.events.CountByStatus(ctx, StatusPending, StatusRetrying)
}

func (r *Relay) GetDeadLetterCount(ctx context.Context) (int64, error) {
	return r.events.CountByStatus(ctx, StatusDeadLetter)
}
