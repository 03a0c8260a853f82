package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/safar/go-bookstore/internal/apperr"
	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
)

type ReservedItem struct {
	BookID   int64
	Quantity int
}

// Reservation lists the decrements applied by one Reserve call, in the
// order they were applied.
type Reservation struct {
	Items []ReservedItem
}

func (r *Reservation) Empty() bool {
	return r == nil || len(r.Items) == 0
}

// Reserve decrements stock for every line or for none of them. Books are
// visited in ascending id order so that concurrent reservations over
// overlapping books acquire row locks in the same order and cannot deadlock.
//
// When a book cannot cover its quantity, the decrements already applied are
// released and the error names that book with the stock seen at that moment.
func Reserve(ctx context.Context, stock Stock, lines []models.OrderLine) (*Reservation, error) {
	if len(lines) == 0 {
		return nil, apperr.Validation("books", "at least one book is required")
	}

	wanted := make(map[int64]int, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, apperr.Validation("quantity", "must be at least 1")
		}
		if line.Quantity > MaxQuantity-wanted[line.BookID] {
			return nil, apperr.Validation("quantity", "too large")
		}
		wanted[line.BookID] += line.Quantity
	}

	ids := make([]int64, 0, len(wanted))
	for id := range wanted {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	reservation := &Reservation{Items: make([]ReservedItem, 0, len(ids))}
	for _, id := range ids {
		quantity := wanted[id]

		applied, err := stock.DecrementStock(ctx, id, quantity)
		if err != nil {
			return nil, releaseAfter(ctx, stock, reservation, err)
		}
		if !applied {
			return nil, releaseAfter(ctx, stock, reservation, shortfall(ctx, stock, id, quantity))
		}

		reservation.Items = append(reservation.Items, ReservedItem{BookID: id, Quantity: quantity})
	}

	return reservation, nil
}

// shortfall explains why a conditional decrement did not apply.
func shortfall(ctx context.Context, stock Stock, bookID int64, requested int) error {
	available, err := stock.StockLevel(ctx, bookID)
	if err != nil {
		if errors.Is(err, database.ErrBookNotFound) {
			return apperr.NotFound("book", bookID)
		}
		return err
	}
	return apperr.InsufficientStock(bookID, requested, available)
}

// Release re-increments every decrement recorded in r. It attempts all items
// even if some fail and reports the failures together.
func Release(ctx context.Context, stock Stock, r *Reservation) error {
	if r.Empty() {
		return nil
	}

	var errs []error
	for _, item := range r.Items {
		if err := stock.IncrementStock(ctx, item.BookID, item.Quantity); err != nil {
			errs = append(errs, fmt.Errorf("release book %d: %w", item.BookID, err))
		}
	}
	return errors.Join(errs...)
}

func releaseAfter(ctx context.Context, stock Stock, r *Reservation, cause error) error {
	if err := Release(ctx, stock, r); err != nil {
		return fmt.Errorf("%w (release failed: %v)", cause, err)
	}
	return cause
}
