// Package checkout turns a cart into a durable order. It prices the cart
// from the live catalog, reserves stock with conditional decrements taken in
// ascending book-id order, and persists the order in the same transaction,
// releasing the reservation if the order cannot be written.
package checkout

import (
	"context"

	"github.com/safar/go-bookstore/internal/models"
)

// Catalog resolves current book data for pricing.
type Catalog interface {
	BooksByID(ctx context.Context, ids []int64) (map[int64]*models.Book, error)
}

// Stock is the slice of the catalog the reservation engine mutates.
// DecrementStock must be a single atomic compare-and-set that only applies
// when at least quantity units are available.
type Stock interface {
	DecrementStock(ctx context.Context, bookID int64, quantity int) (bool, error)
	IncrementStock(ctx context.Context, bookID int64, quantity int) error
	StockLevel(ctx context.Context, bookID int64) (int, error)
}

// Tx is one unit of work. A failed InsertOrder leaves it usable so the
// reservation can still be released.
type Tx interface {
	Stock
	InsertOrder(ctx context.Context, order *models.Order) error
}

type Store interface {
	Catalog
	OrderByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error)
	WithinTx(ctx context.Context, fn func(Tx) error) error
}
