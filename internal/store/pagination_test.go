package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	createdAt := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	encoded := EncodeCursor(OrderCursor{CreatedAt: createdAt, ID: 42})

	decoded, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.True(t, decoded.CreatedAt.Equal(createdAt))
	assert.Equal(t, int64(42), decoded.ID)
}

func TestDecodeEmptyCursorStartsAtNewest(t *testing.T) {
	decoded, err := DecodeCursor("")
	require.NoError(t, err)
	assert.True(t, decoded.CreatedAt.After(time.Now()))
	assert.Equal(t, int64(1<<63-1), decoded.ID)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("%%%")
	assert.Error(t, err)
}

func TestNewOffsetPage(t *testing.T) {
	page := newOffsetPage([]int{1, 2}, 41, 2, 20)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, int64(41), page.Total)
}
