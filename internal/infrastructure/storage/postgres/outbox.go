package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"supplyledger/internal/core/id"
	"supplyledger/pkg/logger"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxMessage represents a message in the transactional outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"` // e.g. "purchase_order", "invoice"
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"` // e.g. "order.changed"
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

// DomainEvent represents an event to be published via outbox.
type DomainEvent struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// OutboxPublisher writes events to the outbox table.
type OutboxPublisher struct {
	txManager *TxManager
}

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txManager: txManager}
}

// Publish writes an event to the outbox within the current transaction.
// MUST be called inside a transaction context.
func (p *OutboxPublisher) Publish(ctx context.Context, event DomainEvent) error {
	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id.New(), event.AggregateType, event.AggregateID, event.EventType, payload, OutboxStatusPending, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}

	return nil
}

// Enqueue publishes an event in its own transaction.
func (p *OutboxPublisher) Enqueue(ctx context.Context, event DomainEvent) error {
	return p.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return p.Publish(ctx, event)
	})
}

// OutboxHandler processes outbox messages.
type OutboxHandler interface {
	// Handle processes a message and returns error if failed
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// RelayConfig tunes the relay.
type RelayConfig struct {
	BatchSize  int
	MaxRetries int
	// RetryDelay is multiplied by the attempt number.
	RetryDelay time.Duration
}

// OutboxRelay reads and processes messages from the outbox.
type OutboxRelay struct {
	pool    *pgxpool.Pool
	handler OutboxHandler
	cfg     RelayConfig
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(pool *Pool, handler OutboxHandler, cfg RelayConfig) *OutboxRelay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Minute
	}
	return &OutboxRelay{
		pool:    pool.Pool,
		handler: handler,
		cfg:     cfg,
	}
}

const selectPendingSQL = `
	SELECT id, aggregate_type, aggregate_id, event_type, payload, status,
	       retry_count, last_error, next_retry_at, created_at, published_at
	FROM sys_outbox
	WHERE status = $1
	  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
	ORDER BY created_at
	LIMIT $2
	FOR UPDATE SKIP LOCKED
`

// ProcessBatch fetches and processes pending messages. The claimed rows stay
// locked until the batch commits, so concurrent workers never share a message.
// Returns number of successfully handled messages.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin outbox batch: %w", err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, selectPendingSQL, OutboxStatusPending, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox messages: %w", err)
	}

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*OutboxMessage, error) {
		var msg OutboxMessage
		err := row.Scan(
			&msg.ID, &msg.AggregateType, &msg.AggregateID, &msg.EventType,
			&msg.Payload, &msg.Status, &msg.RetryCount, &msg.LastError,
			&msg.NextRetryAt, &msg.CreatedAt, &msg.PublishedAt,
		)
		return &msg, err
	})
	if err != nil {
		return 0, fmt.Errorf("scan outbox messages: %w", err)
	}

	processed := 0
	for _, msg := range messages {
		if err := r.processMessage(ctx, tx, msg); err != nil {
			logger.Warn(ctx, "outbox message failed",
				"message_id", msg.ID,
				"event_type", msg.EventType,
				"retry_count", msg.RetryCount,
				"error", err)
			continue
		}
		processed++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit outbox batch: %w", err)
	}

	return processed, nil
}

// processMessage handles a single outbox message and records the outcome in tx.
// The handler itself runs outside tx: recomputes open their own transactions.
func (r *OutboxRelay) processMessage(ctx context.Context, tx pgx.Tx, msg *OutboxMessage) error {
	handleErr := r.handler.Handle(ctx, msg)

	if handleErr != nil {
		attempt := msg.RetryCount + 1
		nextRetry := time.Now().UTC().Add(time.Duration(attempt) * r.cfg.RetryDelay)
		status := OutboxStatusPending
		if attempt >= r.cfg.MaxRetries {
			status = OutboxStatusFailed
		}

		_, err := tx.Exec(ctx, `
			UPDATE sys_outbox
			SET retry_count = $1,
			    last_error = $2,
			    next_retry_at = $3,
			    status = $4
			WHERE id = $5
		`, attempt, handleErr.Error(), nextRetry, status, msg.ID)
		if err != nil {
			return fmt.Errorf("update failed message: %w", err)
		}
		return handleErr
	}

	_, err := tx.Exec(ctx, `
		UPDATE sys_outbox
		SET status = $1, published_at = $2
		WHERE id = $3
	`, OutboxStatusPublished, time.Now().UTC(), msg.ID)
	return err
}

// MoveToDLQ moves exhausted messages to the dead letter queue.
func (r *OutboxRelay) MoveToDLQ(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		WITH moved AS (
			DELETE FROM sys_outbox
			WHERE status = $1
			RETURNING id, aggregate_type, aggregate_id, event_type, payload,
			          retry_count, last_error, created_at
		)
		INSERT INTO sys_outbox_dlq (
			id, aggregate_type, aggregate_id, event_type, payload,
			retry_count, failure_reason, created_at, failed_at
		)
		SELECT id, aggregate_type, aggregate_id, event_type, payload,
		       retry_count, last_error, created_at, NOW()
		FROM moved
	`, OutboxStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("move to DLQ: %w", err)
	}

	return result.RowsAffected(), nil
}

// PurgePublished deletes published messages older than retention.
func (r *OutboxRelay) PurgePublished(ctx context.Context, retention time.Duration) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM sys_outbox
		WHERE status = $1 AND published_at < $2
	`, OutboxStatusPublished, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purge published: %w", err)
	}
	return result.RowsAffected(), nil
}
