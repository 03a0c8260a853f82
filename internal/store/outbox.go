package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/safar/go-bookstore/internal/database"
)

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

type OutboxEvent struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   int64           `json:"order_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// InsertEvent records an event in the outbox. Call it in the same transaction
// as the change it describes.
func InsertEvent(ctx context.Context, db database.DBTX, orderID int64, eventType string, payload any) (*OutboxEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}

	event := &OutboxEvent{
		ID:        uuid.New(),
		OrderID:   orderID,
		EventType: eventType,
		Payload:   body,
	}

	err = db.QueryRowContext(ctx,
		`INSERT INTO order_events (id, order_id, event_type, payload, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 RETURNING created_at`,
		event.ID, event.OrderID, event.EventType, []byte(body)).Scan(&event.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	return event, nil
}

// ClaimUnpublishedEvents locks up to limit unpublished events, oldest first.
// Rows locked by another relay are skipped, so several relays can drain the
// outbox in parallel. db must be a transaction.
func ClaimUnpublishedEvents(ctx context.Context, db database.DBTX, limit int) ([]OutboxEvent, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, order_id, event_type, payload, created_at
		 FROM order_events
		 WHERE published_at IS NULL
		 ORDER BY created_at
		 FOR UPDATE SKIP LOCKED
		 LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("claim events: %w", err)
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		var event OutboxEvent
		var payload []byte
		if err := rows.Scan(&event.ID, &event.OrderID, &event.EventType, &payload, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.Payload = payload
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return events, nil
}

func MarkEventsPublished(ctx context.Context, db database.DBTX, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	_, err := db.ExecContext(ctx,
		`UPDATE order_events SET published_at = NOW() WHERE id = ANY($1::uuid[])`,
		pq.Array(keys))
	if err != nil {
		return fmt.Errorf("mark events published: %w", err)
	}

	return nil
}
