package checkout

import (
	"context"
	"fmt"
	"math"

	"github.com/safar/go-bookstore/internal/apperr"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/shopspring/decimal"
)

// MaxQuantity bounds the copies of one book in an order, after repeated
// ids are merged. It matches the range of the stock column.
const MaxQuantity = math.MaxInt32

type LineRequest struct {
	BookID   int64 `json:"book_id"`
	Quantity int   `json:"quantity"`
}

// BuildLines freezes the current title and price of every requested book
// into order lines. Repeated book ids are merged into their first position.
func BuildLines(ctx context.Context, catalog Catalog, requested []LineRequest) ([]models.OrderLine, error) {
	if len(requested) == 0 {
		return nil, apperr.Validation("books", "at least one book is required")
	}

	var ids []int64
	quantities := make(map[int64]int, len(requested))
	for i, item := range requested {
		field := fmt.Sprintf("books[%d].quantity", i)
		if item.Quantity < 1 {
			return nil, apperr.Validation(field, "must be at least 1")
		}
		if item.Quantity > MaxQuantity-quantities[item.BookID] {
			return nil, apperr.Validation(field, "too large")
		}
		if _, seen := quantities[item.BookID]; !seen {
			ids = append(ids, item.BookID)
		}
		quantities[item.BookID] += item.Quantity
	}

	books, err := catalog.BooksByID(ctx, ids)
	if err != nil {
		return nil, apperr.Persistence("load books", err)
	}

	lines := make([]models.OrderLine, 0, len(ids))
	for _, id := range ids {
		book, ok := books[id]
		if !ok {
			return nil, apperr.NotFound("book", id)
		}
		lines = append(lines, models.OrderLine{
			BookID:    book.ID,
			Title:     book.Title,
			UnitPrice: book.Price,
			Quantity:  quantities[id],
		})
	}

	return lines, nil
}

// Total is the sum of unit price times quantity over lines.
func Total(lines []models.OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}
