package checkout

import (
	"context"
	"math"
	"testing"

	"github.com/safar/go-bookstore/internal/apperr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLinesFreezesCatalogPrices(t *testing.T) {
	s := newMemStore(book(1, "Dune", "19.99", 10), book(2, "Sapiens", "24.99", 10))

	lines, err := BuildLines(context.Background(), s, []LineRequest{
		{BookID: 2, Quantity: 1},
		{BookID: 1, Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, int64(2), lines[0].BookID)
	assert.Equal(t, "Sapiens", lines[0].Title)
	assert.Equal(t, int64(1), lines[1].BookID)
	assert.True(t, lines[1].UnitPrice.Equal(decimal.RequireFromString("19.99")))
	assert.True(t, Total(lines).Equal(decimal.RequireFromString("64.97")))
}

func TestBuildLinesMergesRepeatedBooks(t *testing.T) {
	s := newMemStore(book(1, "Dune", "10.00", 10), book(2, "Sapiens", "5.00", 10))

	lines, err := BuildLines(context.Background(), s, []LineRequest{
		{BookID: 1, Quantity: 1},
		{BookID: 2, Quantity: 1},
		{BookID: 1, Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, int64(1), lines[0].BookID)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.True(t, Total(lines).Equal(decimal.RequireFromString("35.00")))
}

func TestBuildLinesRejectsBadInput(t *testing.T) {
	s := newMemStore(book(1, "Dune", "10.00", 10))
	ctx := context.Background()

	_, err := BuildLines(ctx, s, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = BuildLines(ctx, s, []LineRequest{{BookID: 1, Quantity: 0}})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "books[0].quantity", verr.Field)

	_, err = BuildLines(ctx, s, []LineRequest{{BookID: 1, Quantity: 1}, {BookID: 99, Quantity: 1}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestBuildLinesRejectsOversizedQuantities(t *testing.T) {
	s := newMemStore(book(1, "Dune", "10.00", 10))
	ctx := context.Background()

	var verr *apperr.ValidationError

	_, err := BuildLines(ctx, s, []LineRequest{{BookID: 1, Quantity: MaxQuantity + 1}})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "books[0].quantity", verr.Field)
	assert.Equal(t, "too large", verr.Reason)

	// Merged quantities must not wrap around into a small order.
	_, err = BuildLines(ctx, s, []LineRequest{
		{BookID: 1, Quantity: math.MaxInt},
		{BookID: 1, Quantity: math.MaxInt},
		{BookID: 1, Quantity: 3},
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "books[0].quantity", verr.Field)

	_, err = BuildLines(ctx, s, []LineRequest{
		{BookID: 1, Quantity: MaxQuantity},
		{BookID: 1, Quantity: 1},
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "books[1].quantity", verr.Field)

	lines, err := BuildLines(ctx, s, []LineRequest{{BookID: 1, Quantity: MaxQuantity}})
	require.NoError(t, err)
	assert.Equal(t, MaxQuantity, lines[0].Quantity)
}
