package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
)

const paymentIntentConstraint = "orders_payment_intent_id_key"

var ErrDuplicatePaymentIntent = errors.New("payment intent already recorded")

const orderColumns = `id, user_id, order_number, total_amount, payment_status, payment_intent_id,
	ship_full_name, ship_email, ship_phone, ship_address, created_at, updated_at, version`

func generateOrderNumber() string {
	return "ORD-" + uuid.NewString()
}

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.TotalAmount,
		&order.PaymentStatus,
		&order.PaymentIntentID,
		&order.ShippingAddress.FullName,
		&order.ShippingAddress.Email,
		&order.ShippingAddress.Phone,
		&order.ShippingAddress.Address,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// InsertOrder persists an order header and its lines. The order's ID, number
// and timestamps are filled in from the database. A second order for the same
// payment intent fails with ErrDuplicatePaymentIntent.
func InsertOrder(ctx context.Context, db database.DBTX, order *models.Order) error {
	if order.OrderNumber == "" {
		order.OrderNumber = generateOrderNumber()
	}

	err := db.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, order_number, total_amount, payment_status, payment_intent_id,
		                     ship_full_name, ship_email, ship_phone, ship_address, created_at, updated_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW(), 1)
		 RETURNING id, created_at, updated_at, version`,
		order.UserID, order.OrderNumber, order.TotalAmount, order.PaymentStatus, order.PaymentIntentID,
		order.ShippingAddress.FullName, order.ShippingAddress.Email,
		order.ShippingAddress.Phone, order.ShippingAddress.Address,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt, &order.Version)
	if err != nil {
		if database.IsUniqueViolation(err, paymentIntentConstraint) {
			return ErrDuplicatePaymentIntent
		}
		return fmt.Errorf("create order: %w", err)
	}

	for i, line := range order.Lines {
		_, err = db.ExecContext(ctx,
			`INSERT INTO order_lines (order_id, position, book_id, title, unit_price, quantity, subtotal)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			order.ID, i, line.BookID, line.Title, line.UnitPrice, line.Quantity, line.Subtotal())
		if err != nil {
			return fmt.Errorf("create order line: %w", err)
		}
	}

	return nil
}

func GetOrder(ctx context.Context, db database.DBTX, id int64) (*models.Order, error) {
	return getOrderWhere(ctx, db, `id = $1`, id)
}

func GetOrderByPaymentIntent(ctx context.Context, db database.DBTX, paymentIntentID string) (*models.Order, error) {
	return getOrderWhere(ctx, db, `payment_intent_id = $1`, paymentIntentID)
}

func getOrderWhere(ctx context.Context, db database.DBTX, where string, arg any) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + where

	order, err := scanOrder(db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	orders := []models.Order{*order}
	if err := attachLines(ctx, db, orders); err != nil {
		return nil, err
	}

	return &orders[0], nil
}

// attachLines loads the lines of every order in one query, preserving
// insertion order within each order.
func attachLines(ctx context.Context, db database.DBTX, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, order := range orders {
		ids[i] = order.ID
		index[order.ID] = i
		orders[i].Lines = []models.OrderLine{}
	}

	rows, err := db.QueryContext(ctx,
		`SELECT order_id, book_id, title, unit_price, quantity
		 FROM order_lines
		 WHERE order_id = ANY($1)
		 ORDER BY order_id, position`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("get order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID int64
		var line models.OrderLine
		if err := rows.Scan(&orderID, &line.BookID, &line.Title, &line.UnitPrice, &line.Quantity); err != nil {
			return fmt.Errorf("scan order line: %w", err)
		}
		i := index[orderID]
		orders[i].Lines = append(orders[i].Lines, line)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	return nil
}

func collectOrders(rows *sql.Rows) ([]models.Order, error) {
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// ListOrdersCursor returns a user's orders newest first using keyset
// pagination on (created_at, id).
func ListOrdersCursor(ctx context.Context, db database.DBTX, userID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	if err := attachLines(ctx, db, orders); err != nil {
		return nil, err
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func ListAllOrders(ctx context.Context, db database.DBTX, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list all orders: %w", err)
	}

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}

	if err := attachLines(ctx, db, orders); err != nil {
		return nil, err
	}

	return newOffsetPage(orders, total, page, pageSize), nil
}

// UpdatePaymentStatus moves an order from one payment status to another as a
// compare-and-set. It fails with ErrStaleStatus when the order is no longer
// in the expected status.
func UpdatePaymentStatus(ctx context.Context, db database.DBTX, orderID int64, from, to models.PaymentStatus) error {
	result, err := db.ExecContext(ctx,
		`UPDATE orders
		 SET payment_status = $1, version = version + 1, updated_at = NOW()
		 WHERE id = $2 AND payment_status = $3`,
		to, orderID, from)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrStaleStatus
	}

	return nil
}
