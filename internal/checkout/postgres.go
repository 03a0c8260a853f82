package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/safar/go-bookstore/internal/store"
)

// PostgresStore runs checkout against Postgres. Each WithinTx call is one
// READ COMMITTED transaction, retried on deadlock or serialization failure.
type PostgresStore struct {
	db   *sql.DB
	opts database.TxOptions
}

func NewPostgresStore(db *sql.DB, maxRetries int) *PostgresStore {
	opts := database.DefaultTxOptions()
	opts.MaxRetries = maxRetries
	return &PostgresStore{db: db, opts: opts}
}

func (s *PostgresStore) BooksByID(ctx context.Context, ids []int64) (map[int64]*models.Book, error) {
	return store.GetBooksByIDs(ctx, s.db, ids)
}

func (s *PostgresStore) OrderByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	return store.GetOrderByPaymentIntent(ctx, s.db, paymentIntentID)
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	return database.WithRetry(ctx, s.db, s.opts, func(tx *sql.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) DecrementStock(ctx context.Context, bookID int64, quantity int) (bool, error) {
	return store.DecrementStock(ctx, t.tx, bookID, quantity)
}

func (t *pgTx) IncrementStock(ctx context.Context, bookID int64, quantity int) error {
	return store.IncrementStock(ctx, t.tx, bookID, quantity)
}

func (t *pgTx) StockLevel(ctx context.Context, bookID int64) (int, error) {
	return store.StockLevel(ctx, t.tx, bookID)
}

// InsertOrder writes the order, its lines and its order.placed outbox event
// under a savepoint. On failure the savepoint is rolled back so the
// transaction stays usable and the caller can release its reservation.
func (t *pgTx) InsertOrder(ctx context.Context, order *models.Order) error {
	if _, err := t.tx.ExecContext(ctx, `SAVEPOINT insert_order`); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}

	err := t.insertOrder(ctx, order)
	if err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT insert_order`); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback to savepoint: %w", rbErr))
		}
		return err
	}

	if _, err := t.tx.ExecContext(ctx, `RELEASE SAVEPOINT insert_order`); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (t *pgTx) insertOrder(ctx context.Context, order *models.Order) error {
	if err := store.InsertOrder(ctx, t.tx, order); err != nil {
		return err
	}

	_, err := store.InsertEvent(ctx, t.tx, order.ID, store.EventOrderPlaced, OrderPlacedEvent(order))
	return err
}

// OrderPlaced is the payload of the order.placed event.
type OrderPlaced struct {
	OrderID         int64              `json:"order_id"`
	OrderNumber     string             `json:"order_number"`
	UserID          int64              `json:"user_id"`
	TotalAmount     string             `json:"total_amount"`
	PaymentIntentID string             `json:"payment_intent_id"`
	Lines           []models.OrderLine `json:"books"`
}

func OrderPlacedEvent(order *models.Order) OrderPlaced {
	return OrderPlaced{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		TotalAmount:     order.TotalAmount.StringFixed(2),
		PaymentIntentID: order.PaymentIntentID,
		Lines:           order.Lines,
	}
}
