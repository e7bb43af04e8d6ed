package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DeliveryStatus tracks an outbox event on its way to the stream.
type DeliveryStatus string

const (
	StatusPending    DeliveryStatus = "pending"
	StatusRetrying   DeliveryStatus = "retrying"
	StatusDelivered  DeliveryStatus = "delivered"
	StatusDeadLetter DeliveryStatus = "dead_letter"
)

const DefaultStream = "stream:product_nutrition"

var (
	ErrInvalidEvent  = errors.New("invalid outbox event")
	ErrEventNotFound = errors.New("outbox event not found")
)

// OutboxEvent is one queued notification about a stored product. Field order
// matches the columns selected by dueEventsQuery.
type OutboxEvent struct {
	ID            uuid.UUID
	ProductURL    string
	EventType     string
	Payload       json.RawMessage
	Stream        string
	Status        DeliveryStatus
	Attempts      int
	LastError     *string
	CreatedAt     time.Time
	NextAttemptAt time.Time
}

func (e *OutboxEvent) validate() error {
	switch {
	case e.ProductURL == "":
		return fmt.Errorf("%w: product url is required", ErrInvalidEvent)
	case e.EventType == "":
		return fmt.Errorf("%w: event type is required", ErrInvalidEvent)
	case len(e.Payload) == 0:
		return fmt.Errorf("%w: payload is required", ErrInvalidEvent)
	}
	return nil
}

// RetryPolicy decides what happens to an event after a failed delivery.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		MaxDelay:    5 * time.Minute,
	}
}

// after returns the status and wait for an event that has failed attempts
// times. The wait doubles per attempt and is zero once the event is dead.
func (p RetryPolicy) after(attempts int) (DeliveryStatus, time.Duration) {
	if attempts >= p.MaxAttempts {
		return StatusDeadLetter, 0
	}

	delay := p.BaseDelay
	for i := 1; i < attempts && delay < p.MaxDelay; i++ {
		delay *= 2
	}
	return StatusRetrying, min(delay, p.MaxDelay)
}

type OutboxRepository struct {
	db     *DB
	policy RetryPolicy
}

func NewOutboxRepository(db *DB) *OutboxRepository {
	return &OutboxRepository{db: db, policy: DefaultRetryPolicy()}
}

// InsertWithTx queues event inside tx so it commits with the product row.
func (r *OutboxRepository) InsertWithTx(ctx context.Context, tx pgx.Tx, event *OutboxEvent) error {
	if err := event.validate(); err != nil {
		return err
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Stream == "" {
		event.Stream = DefaultStream
	}
	event.Status = StatusPending
	event.CreatedAt = time.Now()
	event.NextAttemptAt = event.CreatedAt

	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_event
			(id, product_url, event_type, payload, stream, status, created_at, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.ProductURL, event.EventType, event.Payload,
		event.Stream, string(event.Status), event.CreatedAt, event.NextAttemptAt,
	)
	if err != nil {
		return fmt.Errorf("failed to queue event for %s: %w", event.ProductURL, err)
	}
	return nil
}

const dueEventsQuery = `
	SELECT id, product_url, event_type, payload, stream, status,
		attempts, last_error, created_at, next_attempt_at
	FROM outbox_event
	WHERE status = ANY($1) AND next_attempt_at <= now()
	ORDER BY created_at
	LIMIT $2`

// Due returns up to limit events whose next attempt is due, oldest first.
func (r *OutboxRepository) Due(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.pool.Query(ctx, dueEventsQuery, statusNames(StatusPending, StatusRetrying), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due events: %w", err)
	}

	events, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[OutboxEvent])
	if err != nil {
		return nil, fmt.Errorf("failed to read due events: %w", err)
	}
	return events, nil
}

func (r *OutboxRepository) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE outbox_event
		SET status = $2, delivered_at = now(), last_error = NULL
		WHERE id = $1`,
		id, string(StatusDelivered))
	if err != nil {
		return fmt.Errorf("failed to mark event delivered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	return nil
}

// MarkFailed counts a failed attempt and reschedules the event, or moves it
// to the dead letter state once the retry policy is exhausted.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	return r.db.Transaction(ctx, func(tx pgx.Tx) error {
		var attempts int
		err := tx.QueryRow(ctx,
			`SELECT attempts FROM outbox_event WHERE id = $1 FOR UPDATE`, id).Scan(&attempts)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrEventNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("failed to lock event: %w", err)
		}

		attempts++
		status, wait := r.policy.after(attempts)

		_, err = tx.Exec(ctx, `
			UPDATE outbox_event
			SET status = $2, attempts = $3, last_error = $4, next_attempt_at = $5
			WHERE id = $1`,
			id, string(status), attempts, cause.Error(), time.Now().Add(wait))
		if err != nil {
			return fmt.Errorf("failed to reschedule event: %w", err)
		}
		return nil
	})
}

func (r *OutboxRepository) CountByStatus(ctx context.Context, statuses ...DeliveryStatus) (int64, error) {
	var count int64
	err := r.db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox_event WHERE status = ANY($1)`, statusNames(statuses...)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

func statusNames(statuses ...DeliveryStatus) []string {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return names
}
