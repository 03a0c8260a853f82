// Package events publishes the order outbox to the message broker.
package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/store"
	"github.com/sirupsen/logrus"
)

type Publisher interface {
	Publish(ctx context.Context, event store.OutboxEvent) error
}

// Outbox hands out batches of unpublished events. fn returns the ids it
// published; only those are marked, and the rest stay claimable.
type Outbox interface {
	WithClaimed(ctx context.Context, limit int, fn func([]store.OutboxEvent) []uuid.UUID) error
}

type PostgresOutbox struct {
	db *sql.DB
}

func NewPostgresOutbox(db *sql.DB) *PostgresOutbox {
	return &PostgresOutbox{db: db}
}

func (o *PostgresOutbox) WithClaimed(ctx context.Context, limit int, fn func([]store.OutboxEvent) []uuid.UUID) error {
	return database.WithTransaction(ctx, o.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		claimed, err := store.ClaimUnpublishedEvents(ctx, tx, limit)
		if err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		return store.MarkEventsPublished(ctx, tx, fn(claimed))
	})
}

type Relay struct {
	outbox    Outbox
	publisher Publisher
	batchSize int
	interval  time.Duration
	log       *logrus.Entry
}

func NewRelay(outbox Outbox, publisher Publisher, batchSize int, interval time.Duration, log *logrus.Entry) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		outbox:    outbox,
		publisher: publisher,
		batchSize: batchSize,
		interval:  interval,
		log:       log.WithField("component", "outbox-relay"),
	}
}

// DrainOnce publishes one batch in creation order. Publishing stops at the
// first failure so later events are not delivered ahead of it.
func (r *Relay) DrainOnce(ctx context.Context) (int, error) {
	var published int
	var publishErr error

	err := r.outbox.WithClaimed(ctx, r.batchSize, func(events []store.OutboxEvent) []uuid.UUID {
		ids := make([]uuid.UUID, 0, len(events))
		for _, event := range events {
			if err := r.publisher.Publish(ctx, event); err != nil {
				publishErr = fmt.Errorf("publish event %s: %w", event.ID, err)
				break
			}
			ids = append(ids, event.ID)
		}
		published = len(ids)
		return ids
	})
	if err != nil {
		return 0, fmt.Errorf("drain outbox: %w", err)
	}

	return published, publishErr
}

// Run drains the outbox every interval until ctx is done. A full batch is
// followed immediately by another drain.
func (r *Relay) Run(ctx context.Context) error {
	r.log.WithField("interval", r.interval).Info("outbox relay started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		for {
			n, err := r.DrainOnce(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					break
				}
				r.log.WithError(err).Warn("outbox drain failed")
				break
			}
			if n > 0 {
				r.log.WithField("count", n).Debug("outbox events published")
			}
			if n < r.batchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
